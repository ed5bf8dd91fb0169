// Package logging builds the application slog handlers and ships records to Loki.
// Package logging construit les handlers slog et expédie les enregistrements vers Loki.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const lokiFlushInterval = 5 * time.Second

// LokiHandler batches JSON log lines and pushes them to Loki, one stream per level
// LokiHandler regroupe les lignes JSON et les pousse vers Loki, un flux par niveau
type LokiHandler struct {
	sink   *lokiSink
	level  slog.Leveler
	attrs  []scopedAttr
	groups []string
}

// scopedAttr remembers the groups open when the attribute was added
type scopedAttr struct {
	groups []string
	attr   slog.Attr
}

// lokiSink is shared by every handler derived with WithAttrs/WithGroup
type lokiSink struct {
	url       string
	labels    map[string]string
	client    *http.Client
	batchSize int

	mu    sync.Mutex
	batch []lokiEntry

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type lokiEntry struct {
	at    time.Time
	level string
	line  string
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// NewLokiHandler creates handler pushing to url (e.g. http://loki:3100); batchSize 0 pushes every record
// NewLokiHandler crée le handler vers url ; batchSize 0 pousse chaque enregistrement
func NewLokiHandler(url string, labels map[string]string, batchSize int, level slog.Leveler) *LokiHandler {
	s := &lokiSink{
		url:       strings.TrimRight(url, "/") + "/loki/api/v1/push",
		labels:    labels,
		client:    &http.Client{Timeout: 5 * time.Second},
		batchSize: batchSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if s.labels == nil {
		s.labels = map[string]string{}
	}
	go s.run()
	return &LokiHandler{sink: s, level: level}
}

func (h *LokiHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle encodes the record with its attributes as one JSON line / Encode l'enregistrement en une ligne JSON
func (h *LokiHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]any{
		"time":  r.Time.Format(time.RFC3339Nano),
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, sa := range h.attrs {
		addAttr(nested(fields, sa.groups), sa.attr)
	}
	if r.NumAttrs() > 0 {
		target := nested(fields, h.groups)
		r.Attrs(func(a slog.Attr) bool {
			addAttr(target, a)
			return true
		})
	}

	line, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("loki: encode record: %w", err)
	}
	h.sink.add(lokiEntry{at: r.Time, level: strings.ToLower(r.Level.String()), line: string(line)})
	return nil
}

// nested returns the map for a group path, creating it / Retourne la map du chemin de groupes
func nested(m map[string]any, groups []string) map[string]any {
	for _, g := range groups {
		sub, ok := m[g].(map[string]any)
		if !ok {
			sub = map[string]any{}
			m[g] = sub
		}
		m = sub
	}
	return m
}

func addAttr(dst map[string]any, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := map[string]any{}
		for _, ga := range v.Group() {
			addAttr(group, ga)
		}
		if a.Key == "" {
			for k, gv := range group {
				dst[k] = gv
			}
			return
		}
		dst[a.Key] = group
		return
	}
	if a.Key == "" {
		return
	}
	if err, ok := v.Any().(error); ok {
		dst[a.Key] = err.Error()
		return
	}
	dst[a.Key] = v.Any()
}

func (h *LokiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]scopedAttr{}, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, scopedAttr{groups: h.groups, attr: a})
	}
	return &clone
}

func (h *LokiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// Close flushes pending lines and stops the background flusher / Vide le lot et arrête le vidage périodique
func (h *LokiHandler) Close() error {
	s := h.sink
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return s.flush()
}

func (s *lokiSink) add(e lokiEntry) {
	s.mu.Lock()
	s.batch = append(s.batch, e)
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		if err := s.flush(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (s *lokiSink) run() {
	defer close(s.done)
	ticker := time.NewTicker(lokiFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.flush(); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case <-s.stop:
			return
		}
	}
}

// flush pushes the pending batch; Loki being down never fails the caller's log call
func (s *lokiSink) flush() error {
	s.mu.Lock()
	entries := s.batch
	s.batch = nil
	s.mu.Unlock()
	if len(entries) == 0 {
		return nil
	}

	byLevel := map[string]*lokiStream{}
	var order []string
	for _, e := range entries {
		st, ok := byLevel[e.level]
		if !ok {
			labels := make(map[string]string, len(s.labels)+1)
			for k, v := range s.labels {
				labels[k] = v
			}
			labels["level"] = e.level
			st = &lokiStream{Stream: labels}
			byLevel[e.level] = st
			order = append(order, e.level)
		}
		st.Values = append(st.Values, []string{strconv.FormatInt(e.at.UnixNano(), 10), e.line})
	}
	req := lokiPushRequest{}
	for _, lvl := range order {
		req.Streams = append(req.Streams, *byLevel[lvl])
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("loki: encode push: %w", err)
	}
	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("loki: push returned %d", resp.StatusCode)
	}
	return nil
}
