package images

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// RegistryClient resolves remote base image references to manifest digests
// before a build starts. Resolution is what turns a moving tag into a
// pinned FROM line.
type RegistryClient interface {
	// ResolveDigest returns the manifest digest (sha256:...) for a
	// normalized reference.
	ResolveDigest(ctx context.Context, ref *NormalizedRef) (string, error)
}

type registryClient struct{}

// NewRegistryClient creates a registry client using the ambient docker
// keychain for credentials.
func NewRegistryClient() RegistryClient {
	return &registryClient{}
}

func (c *registryClient) ResolveDigest(ctx context.Context, ref *NormalizedRef) (string, error) {
	// Digest references are already pinned.
	if ref.IsDigest() {
		return ref.Digest(), nil
	}

	parsed, err := name.ParseReference(ref.String())
	if err != nil {
		return "", fmt.Errorf("parse reference: %w", err)
	}

	desc, err := remote.Head(parsed,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return "", fmt.Errorf("resolve manifest: %w", err)
	}

	return desc.Digest.String(), nil
}
