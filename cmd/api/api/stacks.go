package api

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-chi/chi/v5"

	"github.com/dfinityianblenke/trainstack/lib/services"
	"github.com/dfinityianblenke/trainstack/lib/stack"
)

// maxStackUploadBytes bounds the multipart body held in memory before
// spilling to disk.
const maxStackUploadBytes = 32 << 20

// UpStack brings up a stack from a multipart upload: a "stack" YAML file
// and an optional "context" tarball with the build sources.
func (s *ApiService) UpStack(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxStackUploadBytes); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: fmt.Sprintf("parse multipart form: %v", err)})
		return
	}

	stackFile, _, err := r.FormFile("stack")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: "stack file is required"})
		return
	}
	defer stackFile.Close()

	data, err := io.ReadAll(stackFile)
	if err != nil {
		respondError(w, r, fmt.Errorf("read stack file: %w", err))
		return
	}

	file, err := stack.Parse(data, nil)
	if err != nil {
		respondError(w, r, err)
		return
	}

	contextDir, err := os.MkdirTemp("", "trainstack-context-*")
	if err != nil {
		respondError(w, r, fmt.Errorf("create context directory: %w", err))
		return
	}
	defer os.RemoveAll(contextDir)

	if ctxFile, _, err := r.FormFile("context"); err == nil {
		defer ctxFile.Close()
		if err := extractContext(ctxFile, contextDir); err != nil {
			respondError(w, r, fmt.Errorf("extract build context: %w", err))
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		respondJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: fmt.Sprintf("read context: %v", err)})
		return
	}

	result, err := s.ServiceManager.UpStack(r.Context(), services.UpStackRequest{
		File:       file,
		ContextDir: contextDir,
		NoBuild:    r.URL.Query().Get("no_build") == "true",
		NoCache:    r.URL.Query().Get("no_cache") == "true",
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// DownStack stops and removes a stack. Volumes stay unless ?volumes=true.
func (s *ApiService) DownStack(w http.ResponseWriter, r *http.Request) {
	removeVolumes := r.URL.Query().Get("volumes") == "true"
	if err := s.ServiceManager.DownStack(r.Context(), chi.URLParam(r, "name"), removeVolumes); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// extractContext unpacks an uploaded tarball (optionally gzipped) into
// dir. Entry paths are joined symlink-safe so an archive cannot write
// outside the context directory.
func extractContext(src io.Reader, dir string) error {
	buffered := bufio.NewReader(src)

	var reader io.Reader = buffered
	if magic, err := buffered.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			return fmt.Errorf("open gzip archive: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target, err := securejoin.SecureJoin(dir, hdr.Name)
		if err != nil {
			return fmt.Errorf("resolve entry %q: %w", hdr.Name, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %q: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent of %q: %w", hdr.Name, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0777)
			if err != nil {
				return fmt.Errorf("create file %q: %w", hdr.Name, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("write file %q: %w", hdr.Name, err)
			}
			f.Close()
		default:
			// Symlinks, devices and the rest have no business in a build
			// context upload.
		}
	}
}
