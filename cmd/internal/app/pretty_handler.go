package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

// palette paints strings when color is on and passes them through otherwise.
type palette bool

func (p palette) paint(s, code string) string {
	if !p || code == "" {
		return s
	}
	return code + s + ansiReset
}

// field renders one well-known attribute. alias replaces the key when set.
type field struct {
	alias  string
	render func(p palette, v slog.Value) string
}

// prettyFields covers the keys emitted by the request logger, the auth and
// task handlers and the realtime hub. Other keys print as plain key=value.
var prettyFields = map[string]field{
	"method":       {render: renderMethod},
	"path":         {render: renderWith(ansiCyan)},
	"route":        {render: renderWith(ansiCyan)},
	"status":       {render: renderStatus},
	"status_class": {alias: "class", render: renderStatusClass},
	"duration_ms":  {alias: "duration", render: renderDurationMS},
	"result":       {render: renderResult},
	"request_id":   {alias: "rid", render: renderWith(ansiDim)},
	"user_id":      {alias: "user", render: renderWith(ansiDim)},
	"task_id":      {alias: "task", render: renderWith(ansiMagenta)},
	"event":        {render: renderEvent},
	"err":          {render: renderWith(ansiRed)},
}

// prettyHandler renders one key=value line per record for local runs.
type prettyHandler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	p      palette
	mu     *sync.Mutex
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{w: w, p: palette(color), mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level == nil {
		return level >= slog.LevelInfo
	}
	return level >= h.opts.Level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ts=%s lvl=%s msg=%s",
		h.p.paint(ts.Format("15:04:05.000"), ansiDim),
		h.levelTag(r.Level),
		h.p.paint(r.Message, ansiBright),
	)
	if src := h.source(r.PC); src != "" {
		b.WriteString(" src=")
		b.WriteString(h.p.paint(src, ansiDim))
	}

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		h.writeAttr(&b, prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *prettyHandler) source(pc uintptr) string {
	if !h.opts.AddSource || pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}

// writeAttr flattens groups into dotted keys. Only ungrouped keys get the
// special rendering in prettyFields.
func (h *prettyHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)
	if key == "" && a.Value.Kind() != slog.KindGroup {
		return
	}
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, key, ga)
		}
		return
	}

	val := ""
	if f, ok := prettyFields[key]; ok {
		if f.alias != "" {
			key = f.alias
		}
		val = f.render(h.p, a.Value)
	} else {
		val = quoteIfNeeded(valueToString(a.Value))
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(val)
}

func (h *prettyHandler) levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.p.paint("[ERROR]", ansiRed)
	case level >= slog.LevelWarn:
		return h.p.paint("[WARN]", ansiYellow)
	case level < slog.LevelInfo:
		return h.p.paint("[DEBUG]", ansiMagenta)
	default:
		return h.p.paint("[INFO]", ansiBlue)
	}
}

func renderWith(code string) func(palette, slog.Value) string {
	return func(p palette, v slog.Value) string {
		return p.paint(quoteIfNeeded(valueToString(v)), code)
	}
}

func renderMethod(p palette, v slog.Value) string {
	m := strings.ToUpper(strings.TrimSpace(v.String()))
	code := ""
	switch m {
	case "GET", "HEAD":
		code = ansiBlue
	case "POST":
		code = ansiGreen
	case "PUT", "PATCH":
		code = ansiYellow
	case "DELETE":
		code = ansiRed
	case "OPTIONS":
		code = ansiMagenta
	}
	return p.paint(m, code)
}

func statusColor(status int) string {
	switch {
	case status >= 500:
		return ansiRed
	case status >= 400:
		return ansiYellow
	case status >= 300:
		return ansiCyan
	default:
		return ansiGreen
	}
}

func renderStatus(p palette, v slog.Value) string {
	n, ok := valueToInt64(v)
	if !ok {
		return quoteIfNeeded(valueToString(v))
	}
	return p.paint(strconv.FormatInt(n, 10), statusColor(int(n)))
}

func renderStatusClass(p palette, v slog.Value) string {
	class := strings.TrimSpace(v.String())
	if len(class) != 3 || class[1:] != "xx" || class[0] < '1' || class[0] > '5' {
		return class
	}
	return p.paint(class, statusColor(int(class[0]-'0')*100))
}

func renderDurationMS(p palette, v slog.Value) string {
	ms, ok := valueToInt64(v)
	if !ok {
		return quoteIfNeeded(valueToString(v))
	}
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return p.paint(s, ansiRed)
	case ms >= 250:
		return p.paint(s, ansiYellow)
	default:
		return p.paint(s, ansiDim)
	}
}

func renderResult(p palette, v slog.Value) string {
	r := strings.ToLower(strings.TrimSpace(v.String()))
	code := ""
	switch r {
	case "success":
		code = ansiGreen
	case "redirect":
		code = ansiCyan
	case "client_error", "fail", "rate_limited":
		code = ansiYellow
	case "server_error":
		code = ansiRed
	}
	return p.paint(r, code)
}

// renderEvent colors realtime task events by kind.
func renderEvent(p palette, v slog.Value) string {
	ev := v.String()
	code := ""
	switch {
	case strings.HasSuffix(ev, ".created"):
		code = ansiGreen
	case strings.HasSuffix(ev, ".updated"):
		code = ansiYellow
	case strings.HasSuffix(ev, ".deleted"):
		code = ansiRed
	}
	return p.paint(ev, code)
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		// Int64, Uint64, Bool and Duration already print canonically.
		return v.String()
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		u := v.Uint64()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// stripANSI removes SGR escape sequences.
func stripANSI(s string) string {
	if !strings.Contains(s, "\x1b[") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// visualLen counts printed runes, ignoring color codes.
func visualLen(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}
