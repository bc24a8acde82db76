// Package kube resolves cluster credentials, preferring the in-cluster
// service account and falling back to an explicit kubeconfig.
package kube

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Scope identifies which credential strategy produced a handle.
type Scope string

const (
	ScopeInCluster      Scope = "in_cluster"
	ScopeExternalConfig Scope = "external_config"
)

// ErrNoCredentials is returned when every discovery strategy is exhausted.
// Non-fatal to the hosting process; capabilities needing cluster access fail
// fast with this cause.
var ErrNoCredentials = errors.New("no usable kubernetes credentials found")

// Handle is the cached result of credential resolution. The scope never
// changes within a process lifetime; client construction is lazy so
// resolution itself performs no network I/O.
type Handle struct {
	Scope     Scope
	CreatedAt time.Time

	config *rest.Config
	// kubeconfigPath is empty for in-cluster handles; otherwise the file the
	// external configuration was loaded from, exported to command execution.
	kubeconfigPath string

	clientOnce sync.Once
	clientset  kubernetes.Interface
	clientErr  error
}

// KubeconfigPath returns the resolved external config path, or "" when
// running in-cluster.
func (h *Handle) KubeconfigPath() string { return h.kubeconfigPath }

// Clientset lazily builds and caches the typed client for this handle.
func (h *Handle) Clientset() (kubernetes.Interface, error) {
	h.clientOnce.Do(func() {
		h.clientset, h.clientErr = kubernetes.NewForConfig(h.config)
	})
	return h.clientset, h.clientErr
}

// Ping performs a minimal reachability check against the API server.
func (h *Handle) Ping(ctx context.Context) error {
	cs, err := h.Clientset()
	if err != nil {
		return err
	}
	_, err = cs.Discovery().RESTClient().Get().AbsPath("/version").DoRaw(ctx)
	return err
}

// Resolver detects the runtime context once and memoizes the result.
// Subsequent Resolve calls are cache reads, never re-detection.
type Resolver struct {
	kubeconfigPath string
	log            zerolog.Logger

	once   sync.Once
	handle *Handle
	err    error
}

// NewResolver returns a resolver that will prefer in-cluster credentials and
// otherwise load a kubeconfig located by priority: the supplied path, the
// KUBECONFIG environment variable, then ~/.kube/config.
func NewResolver(kubeconfigPath string, log zerolog.Logger) *Resolver {
	return &Resolver{kubeconfigPath: kubeconfigPath, log: log}
}

// Resolve returns the process-lifetime credential handle, running detection
// on the first call only.
func (r *Resolver) Resolve() (*Handle, error) {
	r.once.Do(r.detect)
	return r.handle, r.err
}

func (r *Resolver) detect() {
	if cfg, err := rest.InClusterConfig(); err == nil {
		r.handle = &Handle{Scope: ScopeInCluster, CreatedAt: time.Now(), config: cfg}
		r.log.Info().Msg("using in-cluster service account credentials")
		return
	}

	path := r.externalConfigPath()
	if _, err := os.Stat(path); err != nil {
		r.err = errors.Wrapf(ErrNoCredentials, "kubeconfig %s not readable", path)
		return
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		r.err = errors.Wrapf(ErrNoCredentials, "kubeconfig %s did not parse: %v", path, err)
		return
	}
	r.handle = &Handle{
		Scope:          ScopeExternalConfig,
		CreatedAt:      time.Now(),
		config:         cfg,
		kubeconfigPath: path,
	}
	r.log.Info().Str("kubeconfig", path).Msg("using external kubeconfig credentials")
}

func (r *Resolver) externalConfigPath() string {
	if r.kubeconfigPath != "" {
		return expand(r.kubeconfigPath)
	}
	if p := os.Getenv("KUBECONFIG"); p != "" {
		return expand(p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return clientcmd.RecommendedHomeFile
	}
	return filepath.Join(home, ".kube", "config")
}

// expand resolves env vars and a leading ~ in user-supplied paths.
func expand(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || len(p) >= 2 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
