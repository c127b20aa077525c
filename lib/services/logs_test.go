package services

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closeOnceReader records whether the engine stream got closed.
type closeOnceReader struct {
	*bytes.Reader
	closed atomic.Bool
}

func (r *closeOnceReader) Close() error {
	r.closed.Store(true)
	return nil
}

func muxedLogs(t *testing.T, stdout, stderr string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if stdout != "" {
		_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout))
		require.NoError(t, err)
	}
	if stderr != "" {
		_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr))
		require.NoError(t, err)
	}
	return &buf
}

func TestServiceLogsDemux(t *testing.T) {
	env := newTestEnv(t)

	svc, err := env.manager.CreateService(context.Background(), edsrRequest())
	require.NoError(t, err)

	buf := muxedLogs(t, "epoch 1/10 loss=0.042\n", "UserWarning: deprecated\n")
	env.engine.logs = io.NopCloser(buf)

	ch, err := env.manager.ServiceLogs(context.Background(), svc.ID, false, "")
	require.NoError(t, err)

	var entries []LogEntry
	for e := range ch {
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "epoch 1/10 loss=0.042", entries[0].Line)
	assert.False(t, entries[0].Stderr)
	assert.Equal(t, "UserWarning: deprecated", entries[1].Line)
	assert.True(t, entries[1].Stderr)
}

func TestServiceLogsReleasesStreamOnNaturalEnd(t *testing.T) {
	env := newTestEnv(t)

	svc, err := env.manager.CreateService(context.Background(), edsrRequest())
	require.NoError(t, err)

	body := &closeOnceReader{Reader: bytes.NewReader(muxedLogs(t, "done\n", "").Bytes())}
	env.engine.logs = body

	before := runtime.NumGoroutine()

	// The context is never cancelled; the stream just runs out.
	ch, err := env.manager.ServiceLogs(context.Background(), svc.ID, false, "")
	require.NoError(t, err)
	for range ch {
	}

	require.Eventually(t, func() bool {
		return body.closed.Load() && runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)
}
