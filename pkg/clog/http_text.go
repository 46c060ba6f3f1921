package clog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/fatih/color"
)

// headColumns are printed in this order right after the level, before the
// message. Every other attribute goes on its own indented line.
var headColumns = []string{MethodKey, PathKey, StatusKey, PackageKey}

var levelColors = map[slog.Level]color.Attribute{
	slog.LevelDebug: color.FgCyan,
	slog.LevelInfo:  color.FgBlue,
	slog.LevelWarn:  color.FgYellow,
	slog.LevelError: color.FgRed,
}

// HTTPTextHandler writes records as colored text for local development:
//
//	2026-10-17T09:00:00Z INFO GET /api/packages/com.example.app/groups 200 com.example.app OK [2 groups]
//	    duration=1.2ms
type HTTPTextHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	color  bool
	prefix string
	attrs  map[string]slog.Value
}

// TextHandlerOption configures an HTTPTextHandler.
type TextHandlerOption func(*HTTPTextHandler)

// WithColor turns ANSI colors on or off. They default to off when stdout is
// not a terminal.
func WithColor(enabled bool) TextHandlerOption {
	return func(h *HTTPTextHandler) {
		h.color = enabled
	}
}

// WithLevel sets the minimum level written. The default is info.
func WithLevel(level slog.Leveler) TextHandlerOption {
	return func(h *HTTPTextHandler) {
		h.level = level
	}
}

func NewHTTPTextHandler(w io.Writer, opts ...TextHandlerOption) *HTTPTextHandler {
	h := &HTTPTextHandler{
		w:     w,
		mu:    &sync.Mutex{},
		level: slog.LevelInfo,
		color: !color.NoColor,
		attrs: map[string]slog.Value{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPTextHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *HTTPTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = maps.Clone(h.attrs)
	for _, a := range attrs {
		collect(nh.attrs, h.prefix, a)
	}
	return &nh
}

func (h *HTTPTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func (h *HTTPTextHandler) Handle(_ context.Context, record slog.Record) error {
	kv := maps.Clone(h.attrs)
	record.Attrs(func(a slog.Attr) bool {
		collect(kv, h.prefix, a)
		return true
	})

	var b bytes.Buffer
	b.WriteString(record.Time.Format(time.RFC3339))
	b.WriteByte(' ')
	h.paint(&b, levelColors[record.Level], record.Level.String())
	for _, key := range headColumns {
		if v, ok := kv[key]; ok {
			b.WriteByte(' ')
			b.WriteString(v.String())
			delete(kv, key)
		}
	}
	b.WriteByte(' ')
	h.paint(&b, color.FgGreen, record.Message)
	if v, ok := kv[GroupsKey]; ok {
		fmt.Fprintf(&b, " [%s groups]", v)
		delete(kv, GroupsKey)
	}
	if v, ok := kv[ErrorKey]; ok {
		b.WriteByte(' ')
		h.paint(&b, color.FgRed, v.String())
		delete(kv, ErrorKey)
	}
	b.WriteByte('\n')
	for _, k := range slices.Sorted(maps.Keys(kv)) {
		fmt.Fprintf(&b, "    %s=%s\n", k, kv[k])
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(b.Bytes()); err != nil {
		return fmt.Errorf("can't write record: %w", err)
	}
	return nil
}

func (h *HTTPTextHandler) paint(b *bytes.Buffer, attr color.Attribute, s string) {
	c := color.New(attr)
	if h.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	_, _ = c.Fprint(b, s)
}

// collect flattens a into kv, joining group keys with dots.
func collect(kv map[string]slog.Value, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			collect(kv, p, ga)
		}
		return
	}
	kv[prefix+a.Key] = a.Value
}
