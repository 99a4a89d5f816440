package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Backends(t *testing.T) {
	for _, backend := range []string{"", BackendSlog, BackendZap} {
		t.Run("backend="+backend, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(backend, "info", &buf)
			require.NoError(t, err)

			log.With("module", "test").Info(context.Background(), "hello", "k", "v")
			log.Debug(context.Background(), "hidden")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, 1, "debug must be filtered at info level")

			var entry map[string]any
			require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
			assert.Equal(t, "hello", entry["msg"])
			assert.Equal(t, "test", entry["module"])
			assert.Equal(t, "v", entry["k"])
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New("logrus", "info", &bytes.Buffer{})
	require.Error(t, err)

	_, err = New(BackendSlog, "verbose", &bytes.Buffer{})
	require.Error(t, err)
}

func TestDiscard_DoesNotPanic(t *testing.T) {
	log := Discard()
	log.Error(context.Background(), "dropped", "err", "x")
	log.With("a", 1).Warn(context.Background(), "dropped")
}
