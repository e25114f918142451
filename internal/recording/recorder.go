// Package recording records session traffic in asciicast v2 format.
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// Terminal size written to the header. Devices are driven line by line
// and never learn the size, since every option is refused.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Recorder records session I/O in asciicast v2 format.
// See: https://docs.asciinema.org/manual/asciicast/v2/
type Recorder struct {
	mu        sync.Mutex
	file      ports.FileHandle
	startTime time.Time
	closed    bool
	clock     ports.Clock
	onClose   func()
}

// Header is the asciicast v2 header.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is an asciicast v2 event [time, type, data].
type Event struct {
	Time float64
	Type string
	Data string
}

// MarshalJSON writes the event as a three-element array.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Time, e.Type, e.Data})
}

// NewRecorder creates a recording file for sessionID under dir. title is
// stored in the header, typically the device address.
func NewRecorder(dir, sessionID, title string, fs ports.FileSystem, clock ports.Clock) (*Recorder, error) {
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	start := clock.Now()
	filename := fmt.Sprintf("%s_%s.cast", sessionID, start.Format("20060102_150405"))

	file, err := fs.OpenFile(filepath.Join(dir, filename), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	header := Header{
		Version:   2,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Timestamp: start.Unix(),
		Title:     title,
		Env:       map[string]string{"TERM": "network"},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if _, err := file.Write(append(headerJSON, '\n')); err != nil {
		file.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &Recorder{file: file, startTime: start, clock: clock}, nil
}

// RecordOutput records data received from the device.
func (r *Recorder) RecordOutput(data string) error {
	return r.record("o", data)
}

// RecordInput records data sent to the device. Use RecordMaskedInput for
// passwords.
func (r *Recorder) RecordInput(data string) error {
	return r.record("i", data)
}

// RecordMaskedInput records length asterisks in place of the input.
func (r *Recorder) RecordMaskedInput(length int) error {
	return r.record("i", strings.Repeat("*", length))
}

func (r *Recorder) record(eventType, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	event := Event{
		Time: r.clock.Now().Sub(r.startTime).Seconds(),
		Type: eventType,
		Data: data,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := r.file.Write(append(eventJSON, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close closes the recording file. Calling it again is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	onClose := r.onClose
	err := r.file.Close()
	r.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return err
}

// Path returns the path to the recording file.
func (r *Recorder) Path() string {
	if r.file == nil {
		return ""
	}
	return r.file.Name()
}
