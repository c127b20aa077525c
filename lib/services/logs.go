package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
)

func (m *manager) ServiceLogs(ctx context.Context, id string, follow bool, tail string) (<-chan LogEntry, error) {
	rec, err := readRecord(m.paths, id)
	if err != nil {
		return nil, err
	}
	if tail == "" {
		tail = "all"
	}

	rc, err := m.client.ContainerLogs(ctx, rec.ContainerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Tail:       tail,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrContainerGone
		}
		return nil, fmt.Errorf("container logs: %w", err)
	}

	ch := make(chan LogEntry, 64)
	done := make(chan struct{})
	go func() {
		defer close(ch)
		defer close(done)
		defer rc.Close()

		// The engine multiplexes stdout and stderr into one stream when
		// the container has no TTY.
		stdout := &lineWriter{ctx: ctx, ch: ch, stderr: false}
		stderr := &lineWriter{ctx: ctx, ch: ch, stderr: true}
		if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil && ctx.Err() == nil {
			m.logger.Debug("log stream ended", "id", id, "error", err)
		}
		stdout.flush()
		stderr.flush()
	}()

	// Close the engine stream when the caller goes away, otherwise a
	// follow stream would block the copy goroutine forever. When the
	// stream ends on its own the watcher exits instead of lingering
	// until the caller's context is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			rc.Close()
		case <-done:
		}
	}()

	return ch, nil
}

// lineWriter splits a demuxed stream into log entries per line.
type lineWriter struct {
	ctx    context.Context
	ch     chan LogEntry
	stderr bool
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line, put it back and wait for more.
			w.buf.WriteString(line)
			break
		}
		if !w.send(line[:len(line)-1]) {
			return len(p), w.ctx.Err()
		}
	}
	return len(p), nil
}

// flush emits a trailing line that never got its newline.
func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.send(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) send(line string) bool {
	select {
	case w.ch <- LogEntry{Line: line, Stderr: w.stderr}:
		return true
	case <-w.ctx.Done():
		return false
	}
}
