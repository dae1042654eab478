package status

import (
	"io"
	"strings"
	"sync"
)

// 📺 Output is the line oriented channel deploy runs report to. Append writes without a line
// break so that a result like "[OK]" can follow on the same line.
type Output interface {
	Append(s string)
	AppendLine(s string)
}

// WriterOutput writes to an io.Writer
type WriterOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterOutput creates an Output on top of w
func NewWriterOutput(w io.Writer) *WriterOutput {
	return &WriterOutput{w: w}
}

// Append implements Output
func (o *WriterOutput) Append(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = io.WriteString(o.w, s)
}

// AppendLine implements Output
func (o *WriterOutput) AppendLine(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = io.WriteString(o.w, s+"\n")
}

// 📼 Recorder keeps everything written to it in memory
type Recorder struct {
	mu  sync.Mutex
	buf strings.Builder
}

// Append implements Output
func (r *Recorder) Append(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.WriteString(s)
}

// AppendLine implements Output
func (r *Recorder) AppendLine(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.WriteString(s)
	r.buf.WriteString("\n")
}

// String returns everything recorded so far
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// Lines returns the recorded lines without empty ones
func (r *Recorder) Lines() []string {
	var lines []string
	for _, l := range strings.Split(r.String(), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Discard drops everything
var Discard Output = discard{}

type discard struct{}

func (discard) Append(string)     {}
func (discard) AppendLine(string) {}
