package images

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/dfinityianblenke/trainstack/lib/stack"
)

const contextDockerfile = "Dockerfile"

// buildContext assembles the tar stream sent to the engine: the synthesized
// Dockerfile plus the source paths named by copy steps. Copy sources are
// resolved with a symlink-safe join so a crafted spec cannot pull files
// from outside the context directory.
func buildContext(contextDir, dockerfile string, spec stack.ImageSpec) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if err := tw.WriteHeader(&tar.Header{
		Name: contextDockerfile,
		Mode: 0644,
		Size: int64(len(dockerfile)),
	}); err != nil {
		return nil, fmt.Errorf("write dockerfile header: %w", err)
	}
	if _, err := tw.Write([]byte(dockerfile)); err != nil {
		return nil, fmt.Errorf("write dockerfile: %w", err)
	}

	seen := make(map[string]bool)
	for _, step := range spec.Steps {
		if step.Copy == nil {
			continue
		}
		src := step.Copy.Src
		if seen[src] {
			continue
		}
		seen[src] = true

		resolved, err := securejoin.SecureJoin(contextDir, src)
		if err != nil {
			return nil, fmt.Errorf("resolve copy source %q: %w", src, err)
		}
		if err := addPath(tw, resolved, src); err != nil {
			return nil, fmt.Errorf("add copy source %q: %w", src, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close context archive: %w", err)
	}

	return &buf, nil
}

// addPath writes a file or directory tree into the archive under name.
func addPath(tw *tar.Writer, resolved, name string) error {
	info, err := os.Stat(resolved)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return addFile(tw, resolved, name, info)
	}

	return filepath.Walk(resolved, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		entryName := name
		if rel != "." {
			entryName = filepath.ToSlash(filepath.Join(name, rel))
		}
		if fi.IsDir() {
			return tw.WriteHeader(&tar.Header{
				Name:     strings.TrimSuffix(entryName, "/") + "/",
				Mode:     int64(fi.Mode().Perm()),
				Typeflag: tar.TypeDir,
			})
		}
		if !fi.Mode().IsRegular() {
			// Sockets, devices and symlinks have no place in a build context.
			return nil
		}
		return addFile(tw, path, entryName, fi)
	})
}

func addFile(tw *tar.Writer, path, name string, info os.FileInfo) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tw.WriteHeader(&tar.Header{
		Name: filepath.ToSlash(name),
		Mode: int64(info.Mode().Perm()),
		Size: info.Size(),
	}); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
