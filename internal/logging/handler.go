package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// field is one flattened attribute; group members use dotted keys.
type field struct {
	key   string
	value slog.Value
}

// logLine is a record with its component pulled out and its fields ordered.
type logLine struct {
	time      time.Time
	level     slog.Level
	component string
	msg       string
	source    *slog.Source
	fields    []field
}

type lineEncoder func(buf *bytes.Buffer, line logLine)

// lineHandler writes one line per record through an encoder. Both the
// console and JSON formats share it, so a record has the same field order
// in either: kdamond and target first, session_id last.
type lineHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	addSource bool
	encode    lineEncoder

	fields []field
	groups []string
}

func newLineHandler(w io.Writer, lvl *slog.LevelVar, addSource bool, encode lineEncoder) *lineHandler {
	return &lineHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource, encode: encode}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	line := logLine{
		time:  record.Time,
		level: record.Level,
		msg:   strings.TrimSpace(record.Message),
	}
	if line.time.IsZero() {
		line.time = time.Now()
	}
	if h.addSource {
		line.source = record.Source()
	}

	fields := make([]field, 0, len(h.fields)+record.NumAttrs())
	fields = append(fields, h.fields...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, h.groups, attr)
		return true
	})
	line.component, line.fields = splitComponent(fields)

	var buf bytes.Buffer
	buf.Grow(128 + len(line.fields)*24)
	h.encode(&buf, line)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	for _, attr := range attrs {
		clone.fields = appendAttr(clone.fields, h.groups, attr)
	}
	return clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *lineHandler) clone() *lineHandler {
	clone := *h
	clone.fields = append([]field(nil), h.fields...)
	clone.groups = append([]string(nil), h.groups...)
	return &clone
}

func appendAttr(dst []field, groups []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(append([]string(nil), groups...), attr.Key)
		}
		for _, member := range attr.Value.Group() {
			dst = appendAttr(dst, inner, member)
		}
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(append(append([]string(nil), groups...), key), ".")
	}
	return append(dst, field{key: key, value: attr.Value})
}

// splitComponent removes the component attribute (the first one wins) and
// orders the remaining fields.
func splitComponent(fields []field) (string, []field) {
	var component string
	var seen bool
	kept := fields[:0]
	for _, f := range fields {
		if f.key == FieldComponent {
			if !seen {
				component, seen = plainValue(f.value), true
			}
			continue
		}
		if f.key == "" {
			continue
		}
		kept = append(kept, f)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return fieldRank(kept[i].key) < fieldRank(kept[j].key)
	})
	return component, kept
}

func fieldRank(key string) int {
	switch key {
	case FieldKdamond:
		return 0
	case FieldTarget:
		return 1
	case FieldSessionID:
		return 3
	default:
		return 2
	}
}

// encodeConsole renders:
//
//	2024-05-01 10:00:00 INFO record: kdamond turned off kdamond=0 session_id=...
func encodeConsole(buf *bytes.Buffer, line logLine) {
	buf.WriteString(formatTimestamp(line.time))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(line.level))
	buf.WriteByte(' ')
	if line.component != "" {
		buf.WriteString(line.component)
		buf.WriteString(": ")
	}
	if line.msg != "" {
		buf.WriteString(line.msg)
	} else {
		buf.WriteString("(no message)")
	}
	if line.source != nil {
		buf.WriteString(" [")
		buf.WriteString(sourceLocation(line.source))
		buf.WriteByte(']')
	}
	for _, f := range line.fields {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(consoleValue(f.value))
	}
	buf.WriteByte('\n')
}

// encodeJSON renders one object per line with ts, level, component, msg and
// source ahead of the record fields.
func encodeJSON(buf *bytes.Buffer, line logLine) {
	buf.WriteByte('{')
	writeJSONMember(buf, "ts", line.time.UTC().Format(time.RFC3339), true)
	writeJSONMember(buf, "level", strings.ToLower(levelLabel(line.level)), false)
	if line.component != "" {
		writeJSONMember(buf, FieldComponent, line.component, false)
	}
	writeJSONMember(buf, "msg", line.msg, false)
	if line.source != nil {
		writeJSONMember(buf, "source", sourceLocation(line.source), false)
	}
	for _, f := range line.fields {
		writeJSONMember(buf, f.key, jsonValue(f.value), false)
	}
	buf.WriteString("}\n")
}

func writeJSONMember(buf *bytes.Buffer, key string, value any, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	name, _ := json.Marshal(key)
	buf.Write(name)
	buf.WriteByte(':')
	data, err := json.Marshal(value)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(value))
	}
	buf.Write(data)
}

func sourceLocation(src *slog.Source) string {
	return filepath.Base(src.File) + ":" + strconv.Itoa(src.Line)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
