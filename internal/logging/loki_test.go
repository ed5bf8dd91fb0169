package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushRequest struct {
	Streams []struct {
		Stream map[string]string `json:"stream"`
		Values [][]string        `json:"values"`
	} `json:"streams"`
}

// fakeLoki records push bodies / Enregistre les corps reçus
type fakeLoki struct {
	*httptest.Server
	mu     sync.Mutex
	pushes []pushRequest
}

func newFakeLoki(t *testing.T) *fakeLoki {
	t.Helper()
	f := &fakeLoki{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req pushRequest
		require.NoError(t, json.Unmarshal(body, &req))
		f.mu.Lock()
		f.pushes = append(f.pushes, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeLoki) received() []pushRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushRequest(nil), f.pushes...)
}

func line(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestLokiHandler_StreamsPerLevel(t *testing.T) {
	loki := newFakeLoki(t)
	h := logging.NewLokiHandler(loki.URL+"/", map[string]string{"app": "peages"}, 10, slog.LevelInfo)
	logger := slog.New(h)

	logger.Debug("ignored")
	logger.Info("session ouverte", "session_id", 7)
	logger.Error("validation failed", "err", errors.New("schéma absent"))
	require.Empty(t, loki.received(), "batch not full yet")

	require.NoError(t, h.Close())
	pushes := loki.received()
	require.Len(t, pushes, 1)
	require.Len(t, pushes[0].Streams, 2)

	info, errStream := pushes[0].Streams[0], pushes[0].Streams[1]
	assert.Equal(t, map[string]string{"app": "peages", "level": "info"}, info.Stream)
	assert.Equal(t, "error", errStream.Stream["level"])

	got := line(t, info.Values[0][1])
	assert.Equal(t, "session ouverte", got["msg"])
	assert.EqualValues(t, 7, got["session_id"])
	assert.Equal(t, "schéma absent", line(t, errStream.Values[0][1])["err"])
}

func TestLokiHandler_AttrsAndGroups(t *testing.T) {
	loki := newFakeLoki(t)
	h := logging.NewLokiHandler(loki.URL, nil, 0, slog.LevelInfo)
	defer h.Close()

	slog.New(h).With("request_id", "abc").WithGroup("http").Info("request", "status", 200)

	pushes := loki.received()
	require.Len(t, pushes, 1, "batch size 0 pushes every record")
	got := line(t, pushes[0].Streams[0].Values[0][1])
	assert.Equal(t, "abc", got["request_id"], "attrs added before the group stay at the top")
	assert.EqualValues(t, 200, got["http"].(map[string]any)["status"])
}

func TestLokiHandler_UnreachableDoesNotFail(t *testing.T) {
	h := logging.NewLokiHandler("http://127.0.0.1:1", nil, 0, slog.LevelInfo)
	assert.NotPanics(t, func() { slog.New(h).Info("lost") })
	// the failed push already dropped the line
	assert.NoError(t, h.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbeux", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logging.ParseLevel(tt.in))
		})
	}
}

func TestNew_FanOut(t *testing.T) {
	loki := newFakeLoki(t)
	var console bytes.Buffer
	logger, closeFn := logging.New(config.LoggingConfig{
		Level: "info", Format: "json", LokiEnabled: true, LokiURL: loki.URL, LokiBatchSize: 5,
	}, false, &console)

	logger.Info("démarrage", "port", "8080")
	require.NoError(t, closeFn())

	assert.Equal(t, "démarrage", line(t, console.String())["msg"])
	require.Len(t, loki.received(), 1)
}

func TestNew_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn := logging.New(config.LoggingConfig{Level: "warn"}, false, &console)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NoError(t, closeFn())
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}
