package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
)

// ParseLevel maps debug/info/warn/error, anything else is info / Convertit le niveau, info par défaut
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New builds the logger from config: text or json on w, plus Loki when enabled.
// The returned close func flushes Loki.
// New construit le logger : texte ou json sur w, plus Loki si activé.
func New(conf config.LoggingConfig, production bool, w io.Writer) (*slog.Logger, func() error) {
	level := ParseLevel(conf.Level)

	var console slog.Handler
	if strings.EqualFold(conf.Format, "json") {
		console = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: production})
	} else {
		console = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	if !conf.LokiEnabled || conf.LokiURL == "" {
		return slog.New(console), func() error { return nil }
	}

	loki := NewLokiHandler(conf.LokiURL, conf.LokiLabels, conf.LokiBatchSize, level)
	return slog.New(fanout{console, loki}), loki.Close
}

// fanout writes each record to every handler / Écrit chaque enregistrement dans tous les handlers
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
