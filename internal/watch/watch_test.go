package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surc/internal/analyze"
	"github.com/phobologic/surc/internal/diag"
)

const manifestSrc = `
[project]
name = "watched"

[paths]
ir_root = "ir"
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type run struct {
	report *analyze.Report
	err    error
}

func TestWatcherReanalyzesOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "surv.toml", manifestSrc)
	writeFile(t, dir, "ir/a.toml", "[schema.a]\nkind = \"node\"\n")

	w, err := New(Config{ManifestPath: filepath.Join(dir, "surv.toml"), Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runs := make(chan run, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(r *analyze.Report, err error) {
			runs <- run{r, err}
		})
	}()

	next := func() run {
		t.Helper()
		select {
		case r := <-runs:
			return r
		case <-time.After(5 * time.Second):
			require.FailNow(t, "timed out waiting for analysis")
			return run{}
		}
	}

	first := next()
	require.NoError(t, first.err)
	assert.Len(t, first.report.Units, 1)
	assert.NotEmpty(t, diag.OfKind(first.report.Diagnostics(), diag.UnusedSchema))

	writeFile(t, dir, "ir/b.toml", "[schema.b]\nkind = \"node\"\n")

	// Several events may arrive for one write; wait for the run that sees b.
	deadline := time.Now().Add(5 * time.Second)
	for {
		r := next()
		require.NoError(t, r.err)
		if len(r.report.Units) == 2 {
			break
		}
		if time.Now().After(deadline) {
			require.FailNow(t, "never saw the second unit")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "watcher did not stop")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	w := &Watcher{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	write := func(name string) fsnotify.Event {
		return fsnotify.Event{Name: name, Op: fsnotify.Write}
	}
	assert.False(t, w.handleFSEvent(write("ir/notes.md")))
	assert.False(t, w.handleFSEvent(write("ir/.hidden.toml")))
	assert.False(t, w.handleFSEvent(fsnotify.Event{Name: "ir/a.toml", Op: fsnotify.Chmod}))
	assert.True(t, w.handleFSEvent(write("ir/a.toml")))
}

func TestNewInvalidManifest(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ManifestPath: filepath.Join(t.TempDir(), "missing.toml")})
	require.Error(t, err)
}
