package engine

import (
	"fmt"
	"path/filepath"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLSFiles(t *testing.T) {
	_, _, _, ok := tlsFiles(Config{})
	assert.False(t, ok, "no cert path means no TLS config")

	ca, cert, key, ok := tlsFiles(Config{TLSCertPath: "/certs", TLSVerify: true})
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/certs", "ca.pem"), ca)
	assert.Equal(t, filepath.Join("/certs", "cert.pem"), cert)
	assert.Equal(t, filepath.Join("/certs", "key.pem"), key)

	// Without verify the CA bundle is not pinned; system roots apply.
	ca, cert, key, ok = tlsFiles(Config{TLSCertPath: "/certs"})
	require.True(t, ok)
	assert.Empty(t, ca)
	assert.Equal(t, filepath.Join("/certs", "cert.pem"), cert)
	assert.Equal(t, filepath.Join("/certs", "key.pem"), key)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(cerrdefs.ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("inspect container: %w", cerrdefs.ErrNotFound)))
	assert.False(t, IsNotFound(fmt.Errorf("some other failure")))
	assert.False(t, IsNotFound(nil))
}
