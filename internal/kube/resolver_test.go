package kube_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewizard/kubewizard/internal/kube"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://127.0.0.1:6443
  name: test
contexts:
- context:
    cluster: test
    user: tester
  name: test
current-context: test
users:
- name: tester
  user:
    token: not-a-real-token
`

func writeKubeconfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(testKubeconfig), 0o600))
	return path
}

func TestResolve_ExternalConfig(t *testing.T) {
	path := writeKubeconfig(t)
	r := kube.NewResolver(path, zerolog.Nop())

	h, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, kube.ScopeExternalConfig, h.Scope)
	assert.Equal(t, path, h.KubeconfigPath())
}

func TestResolve_IsIdempotent(t *testing.T) {
	r := kube.NewResolver(writeKubeconfig(t), zerolog.Nop())

	first, err := r.Resolve()
	require.NoError(t, err)
	second, err := r.Resolve()
	require.NoError(t, err)

	assert.Same(t, first, second, "second resolve must be a cache hit")
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestResolve_EnvVariableFallback(t *testing.T) {
	path := writeKubeconfig(t)
	t.Setenv("KUBECONFIG", path)

	r := kube.NewResolver("", zerolog.Nop())
	h, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, path, h.KubeconfigPath())
}

func TestResolve_NoCredentials(t *testing.T) {
	t.Setenv("KUBECONFIG", filepath.Join(t.TempDir(), "does-not-exist"))

	r := kube.NewResolver("", zerolog.Nop())
	_, err := r.Resolve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kube.ErrNoCredentials))
}

func TestResolve_UnparseableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	r := kube.NewResolver(path, zerolog.Nop())
	_, err := r.Resolve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kube.ErrNoCredentials))
}
