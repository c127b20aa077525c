package images

import (
	"strings"

	"github.com/distribution/reference"
)

// NormalizedRef is a validated and normalized image reference. It is either
// a tagged reference (e.g. "docker.io/library/python:3.11") or a digest
// reference (e.g. "docker.io/library/python@sha256:abc...").
type NormalizedRef struct {
	raw        string
	repository string
	tag        string // empty if digest ref
	digest     string // empty if tag ref
	isDigest   bool
}

// ParseNormalizedRef validates and normalizes a user-provided image reference.
// Examples:
//   - "pytorch/pytorch" -> "docker.io/pytorch/pytorch:latest"
//   - "python:3.11" -> "docker.io/library/python:3.11"
//   - "python@sha256:abc..." -> "docker.io/library/python@sha256:abc..."
func ParseNormalizedRef(s string) (*NormalizedRef, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return nil, err
	}

	ref := &NormalizedRef{
		repository: reference.Domain(named) + "/" + reference.Path(named),
	}

	if canonical, ok := named.(reference.Canonical); ok {
		ref.isDigest = true
		ref.digest = canonical.Digest().String()
		ref.raw = canonical.String()
		return ref, nil
	}

	// Tagged reference, add :latest if no tag was given.
	tagged := reference.TagNameOnly(named)
	if t, ok := tagged.(reference.Tagged); ok {
		ref.tag = t.Tag()
	}
	ref.raw = tagged.String()

	return ref, nil
}

// String returns the full normalized reference.
func (r *NormalizedRef) String() string {
	return r.raw
}

// IsDigest returns true if this reference contains a digest (@sha256:...).
func (r *NormalizedRef) IsDigest() bool {
	return r.isDigest
}

// Digest returns the digest if present (e.g. "sha256:abc123...").
// Returns empty string if this is a tagged reference.
func (r *NormalizedRef) Digest() string {
	return r.digest
}

// Repository returns the repository path without tag or digest.
// Example: "docker.io/library/python"
func (r *NormalizedRef) Repository() string {
	return r.repository
}

// Tag returns the tag if this is a tagged reference (e.g. "latest").
// Returns empty string if this is a digest reference.
func (r *NormalizedRef) Tag() string {
	return r.tag
}

// DigestHex returns just the hex portion of the digest without the
// "sha256:" prefix, or empty string for a tagged reference.
func (r *NormalizedRef) DigestHex() string {
	if r.digest == "" {
		return ""
	}
	parts := strings.SplitN(r.digest, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
