// Package recorder implements the mission black box: an append-only JSONL
// log of every raw bus message, one file per session. Replay tooling and the
// labs analysis scripts consume this format, so the line shape is stable:
// {"ts": <unix seconds>, "topic": "...", "data": <payload JSON>}.
package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rwiren/securingskies-platform/internal/ports"
)

// Entry is one recorded line.
type Entry struct {
	TS    float64         `json:"ts"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type BlackBox struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string

	recordCh chan Entry
	done     chan struct{}
	once     sync.Once
}

// New opens a fresh mission log under dir and starts the writer goroutine.
// Recording is decoupled from fusion through a buffered channel: a slow disk
// drops lines, it never blocks the pipeline.
func New(dir string) (*BlackBox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("mission_%s.jsonl", time.Now().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	b := &BlackBox{
		file:     f,
		writer:   bufio.NewWriterSize(f, 1<<16),
		path:     path,
		recordCh: make(chan Entry, 1024),
		done:     make(chan struct{}),
	}
	go b.drain()
	return b, nil
}

// Path returns the mission log location for operator display.
func (b *BlackBox) Path() string { return b.path }

// Record offers one raw message for logging. Non-JSON payloads and a full
// buffer are both silently dropped; the mission never fails for a log error.
func (b *BlackBox) Record(topic string, payload []byte, ts time.Time) {
	if !json.Valid(payload) {
		return
	}
	e := Entry{
		TS:    float64(ts.UnixNano()) / 1e9,
		Topic: topic,
		Data:  json.RawMessage(append([]byte(nil), payload...)),
	}
	select {
	case b.recordCh <- e:
	default:
	}
}

// Close flushes and closes the mission log after draining buffered entries.
func (b *BlackBox) Close() error {
	b.once.Do(func() { close(b.recordCh) })
	<-b.done

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writer.Flush(); err != nil {
		b.file.Close()
		return err
	}
	return b.file.Close()
}

func (b *BlackBox) drain() {
	defer close(b.done)
	for e := range b.recordCh {
		b.writeEntry(e)
	}
}

func (b *BlackBox) writeEntry(e Entry) {
	line, err := json.Marshal(e)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.writer.Write(line); err != nil {
		return
	}
	if err := b.writer.WriteByte('\n'); err != nil {
		return
	}
	// Flush per line so a crash loses at most the in-flight entry.
	_ = b.writer.Flush()
}

var _ ports.BlackBox = (*BlackBox)(nil)
