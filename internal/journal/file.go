package journal

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/roach88/csc/internal/ir"
)

// DefaultFileName is the conventional journal file name.
const DefaultFileName = "decisions.jsonl"

// File appends attempts to a JSONL file. Existing content is kept; the file
// is opened in append mode and each line is synced to disk before Write
// returns.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenFile opens (or creates) the journal at path for appending.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &File{path: path, f: f}, nil
}

// Path returns the file path.
func (j *File) Path() string {
	return j.path
}

// Write appends one canonical JSON line and syncs it.
func (j *File) Write(ctx context.Context, a ir.DecisionAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := a.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("encode attempt %s/%s: %w", a.Window, a.RuleID, err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return fmt.Errorf("journal %s is closed", j.path)
	}
	if _, err := j.f.Write(line); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Close syncs and closes the file. Close is idempotent.
func (j *File) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	f := j.f
	j.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync journal: %w", err)
	}
	return f.Close()
}

// ReadFile decodes every attempt in a JSONL journal. Blank lines are skipped.
func ReadFile(path string) ([]ir.DecisionAttempt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	var out []ir.DecisionAttempt
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		a, err := ir.ParseDecisionAttempt(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return out, nil
}
