// Package execution runs cluster command lines (kubectl, helm) against the
// resolved credentials and returns their output as text.
package execution

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kubewizard/kubewizard/internal/kube"
)

// DefaultTimeout bounds a single command execution.
const DefaultTimeout = 60 * time.Second

// Executor runs shell-like command lines with the resolved KUBECONFIG in the
// environment. The shell binary is located once and cached.
type Executor struct {
	resolver *kube.Resolver
	timeout  time.Duration
	log      zerolog.Logger

	shellOnce sync.Once
	shellPath string
	shellErr  error
}

func New(resolver *kube.Resolver, timeout time.Duration, log zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{resolver: resolver, timeout: timeout, log: log}
}

func (e *Executor) shell() (string, error) {
	e.shellOnce.Do(func() {
		e.shellPath, e.shellErr = exec.LookPath("sh")
	})
	return e.shellPath, e.shellErr
}

// Run executes one command line and returns its standard output. Failures
// (missing credentials, non-zero exit, timeout) come back as descriptive
// errors so the agent can fold them into an observation and keep reasoning.
func (e *Executor) Run(commands string) (string, error) {
	handle, err := e.resolver.Resolve()
	if err != nil {
		return "", fmt.Errorf("cluster access unavailable: %w", err)
	}

	sh, err := e.shell()
	if err != nil {
		return "", fmt.Errorf("no shell available to execute commands: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, sh, "-c", commands)
	cmd.Env = commandEnv(handle)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug().Str("commands", commands).Msg("executing cluster command")
	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s: %s", e.timeout, commands)
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("command failed: %s", detail)
	}
	return stdout.String(), nil
}

// commandEnv extends the process environment with the handle's kubeconfig so
// kubectl and helm target the resolved cluster.
func commandEnv(handle *kube.Handle) []string {
	env := os.Environ()
	if path := handle.KubeconfigPath(); path != "" {
		env = append(env, "KUBECONFIG="+path)
	}
	return env
}
