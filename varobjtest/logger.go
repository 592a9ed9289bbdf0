// Copyright © 2024 The ELPS authors

package varobjtest

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Logger forwards complete lines written to it to t.Log.
type Logger struct {
	t   testing.TB
	mu  sync.Mutex
	buf []byte
}

var _ io.Writer = (*Logger)(nil)

func NewLogger(t testing.TB) *Logger {
	return &Logger{
		t: t,
	}
}

func (log *Logger) Write(b []byte) (int, error) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.buf = append(log.buf, b...)
	for {
		i := bytes.IndexByte(log.buf, '\n')
		if i < 0 {
			return len(b), nil
		}
		log.t.Log(string(log.buf[:i])) // slice does not include \n
		log.buf = log.buf[i+1:]
	}
}

func (log *Logger) Flush() {
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.buf) == 0 {
		return
	}
	log.t.Log(string(log.buf))
	log.buf = nil
}

// NewLogrus returns a debug level logrus logger whose output goes to the
// test log. The returned hook records every entry for assertions.
func NewLogrus(t testing.TB) (*logrus.Logger, *Hook) {
	w := NewLogger(t)
	t.Cleanup(w.Flush)
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log, &Hook{Hook: test.NewLocal(log)}
}

// Hook captures logrus entries.
type Hook struct {
	*test.Hook
}

// Entries returns the captured entries at or above level in severity.
func (h *Hook) Entries(level logrus.Level) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range h.AllEntries() {
		if e.Level <= level {
			out = append(out, e)
		}
	}
	return out
}
