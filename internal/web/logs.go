package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultLogLines = 2000
	defaultLogTail  = 200
	maxLogTail      = 5000
)

// LogBuffer is a ring of the most recent log lines, numbered from 0 in
// the order they were written. It is an io.Writer so it can sit behind
// log.SetOutput next to stderr.
type LogBuffer struct {
	mu      sync.Mutex
	ring    []string
	total   uint64
	partial []byte
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = defaultLogLines
	}
	return &LogBuffer{ring: make([]string, maxLines)}
}

// Write stores every completed line in p. A trailing fragment is kept
// until its newline arrives.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			b.partial = append(b.partial, rest...)
			return len(p), nil
		}
		b.partial = append(b.partial, rest[:i]...)
		b.push(string(bytes.TrimRight(b.partial, "\r")))
		b.partial = b.partial[:0]
		rest = rest[i+1:]
	}
}

func (b *LogBuffer) push(line string) {
	if line == "" {
		return
	}
	b.ring[b.total%uint64(len(b.ring))] = line
	b.total++
}

// oldest is the sequence number of the oldest line still held.
func (b *LogBuffer) oldest() uint64 {
	if n := uint64(len(b.ring)); b.total > n {
		return b.total - n
	}
	return 0
}

// Tail returns lines numbered from after onwards, at most limit of the
// newest. next is the number to pass as after to continue; lost counts
// lines evicted before they could be returned.
func (b *LogBuffer) Tail(after uint64, limit int) (lines []string, next, lost uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := after
	if old := b.oldest(); start < old {
		lost = old - start
		start = old
	}
	if start > b.total {
		start = b.total
	}
	if limit > 0 && b.total-start > uint64(limit) {
		start = b.total - uint64(limit)
	}
	lines = make([]string, 0, b.total-start)
	for i := start; i < b.total; i++ {
		lines = append(lines, b.ring[i%uint64(len(b.ring))])
	}
	return lines, b.total, lost
}

type logTail struct {
	NowUTC string   `json:"now_utc"`
	Next   uint64   `json:"next"`
	Lost   uint64   `json:"lost"`
	Lines  []string `json:"lines"`
}

// Handler serves GET ?tail=N&after=SEQ&format=text|json.
func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		q := r.URL.Query()

		tail := defaultLogTail
		if s := q.Get("tail"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > maxLogTail {
				http.Error(w, fmt.Sprintf("tail must be an integer in [1,%d]", maxLogTail), http.StatusBadRequest)
				return
			}
			tail = v
		}
		var after uint64
		if s := q.Get("after"); s != "" {
			v, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				http.Error(w, "after must be a line number", http.StatusBadRequest)
				return
			}
			after = v
		}

		lines, next, lost := b.Tail(after, tail)
		w.Header().Set("Cache-Control", "no-store")
		if q.Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			for _, line := range lines {
				_, _ = fmt.Fprintln(w, line)
			}
			return
		}
		writeJSON(w, logTail{
			NowUTC: time.Now().UTC().Format(time.RFC3339Nano),
			Next:   next,
			Lost:   lost,
			Lines:  lines,
		})
	})
}

// writeJSON writes v indented, newline terminated.
func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(b, '\n'))
}
