package relay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/logging"
)

// CaptureRecord is one captured relay message in the JSONL capture file.
// The analyzer in tools/ consumes these.
type CaptureRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Channel    string    `json:"channel"`
	ClientID   string    `json:"client_id"`
	Direction  string    `json:"direction"` // "publish" or "broadcast"
	Topic      string    `json:"topic,omitempty"`
	PayloadLen int       `json:"payload_length"`
	Payload    string    `json:"payload"`
}

// CaptureWriter appends relay traffic to a JSONL file, one JSON object per
// line. A nil *CaptureWriter is valid and writes nothing, so callers never
// branch on whether capture is enabled.
type CaptureWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewCaptureWriter opens a timestamped capture file in dir. Returns nil
// (capture disabled) when dir is empty.
func NewCaptureWriter(dir string) (*CaptureWriter, error) {
	if dir == "" {
		return nil, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access capture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("capture path is not a directory: %s", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}

	logging.Info("Capture enabled",
		zap.String("file", path),
	)
	return &CaptureWriter{file: file, path: path}, nil
}

// Write appends one record. Capture failures are logged, never propagated:
// a full disk must not take the relay down mid-class.
func (w *CaptureWriter) Write(record CaptureRecord) {
	if w == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		logging.Error("Failed to marshal capture record", zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write capture record",
			zap.String("file", w.path),
			zap.Error(err),
		)
	}
}

// Path returns the capture file location, empty when capture is disabled
func (w *CaptureWriter) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Close flushes and closes the capture file
func (w *CaptureWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
