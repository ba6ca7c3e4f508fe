package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// CommandLog records executed console commands. It is an audit trail only:
// nothing reads it back on startup.
type CommandLog interface {
	Append(cmd, out string)
}

type NopCommandLog struct{}

func NewNopCommandLog() *NopCommandLog      { return &NopCommandLog{} }
func (l *NopCommandLog) Append(_, _ string) {}

// FileCommandLog appends one JSON object per command to a file.
type FileCommandLog struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

type commandEntry struct {
	Timestamp string `json:"timestamp"`
	Command   string `json:"cmd"`
	Output    string `json:"out"`
}

func NewFileCommandLog(path string) (*FileCommandLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open command log %s: %w", path, err)
	}
	return &FileCommandLog{f: f, now: time.Now}, nil
}

func (l *FileCommandLog) Append(cmd, out string) {
	line, err := json.Marshal(commandEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Command:   cmd,
		Output:    out,
	})
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.f.Write(append(line, '\n'))
}

func (l *FileCommandLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

var _ CommandLog = (*NopCommandLog)(nil)
var _ CommandLog = (*FileCommandLog)(nil)
