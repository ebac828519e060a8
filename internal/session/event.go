package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/ir"
)

// EventKind distinguishes window evaluations from scope advances.
type EventKind int

const (
	EventWindow EventKind = iota
	EventAdvance
)

func (k EventKind) String() string {
	if k == EventAdvance {
		return "advance"
	}
	return "window"
}

// Event is one entry of an event log.
type Event struct {
	Kind     EventKind
	Window   string
	Snapshot ir.Snapshot
	Axis     ir.Axis

	// Line is the 1-based source line, 0 when unknown.
	Line int
}

// rawEvent is the on-disk form shared by JSONL and YAML.
type rawEvent struct {
	Window   string         `json:"window,omitempty" yaml:"window,omitempty"`
	Snapshot map[string]any `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Advance  string         `json:"advance,omitempty" yaml:"advance,omitempty"`
}

// Options control event validation.
type Options struct {
	// AllowAnyWindow accepts window ids outside compiler.KnownWindows.
	AllowAnyWindow bool
}

// LoadEvents reads an event log, choosing the decoder by extension:
// .yaml/.yml are YAML, anything else is JSONL.
func LoadEvents(path string, opts Options) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(f, opts)
	default:
		return ParseJSONL(f, opts)
	}
}

// ParseJSONL decodes one event per line. Blank lines and lines starting
// with '#' are skipped.
func ParseJSONL(r io.Reader, opts Options) ([]Event, error) {
	var events []Event
	err := scanJSONL(r, opts, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func scanJSONL(r io.Reader, opts Options, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		var raw rawEvent
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		ev, err := raw.event(line, opts)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}

// ParseYAML decodes a YAML list of events, either at the top level or
// under an "events" key.
func ParseYAML(r io.Reader, opts Options) ([]Event, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse events: %w", err)
	}
	return DecodeYAMLNode(&doc, opts)
}

// DecodeYAMLNode decodes events from an already parsed node. Used by the
// harness, whose scenarios embed an event list.
func DecodeYAMLNode(n *yaml.Node, opts Options) ([]Event, error) {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind == yaml.MappingNode {
		var list *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "events" {
				list = n.Content[i+1]
			}
		}
		if list == nil {
			return nil, fmt.Errorf("line %d: expected a list of events or an \"events\" key", n.Line)
		}
		n = list
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of events", n.Line)
	}

	events := make([]Event, 0, len(n.Content))
	for _, item := range n.Content {
		var raw rawEvent
		if err := item.Decode(&raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", item.Line, err)
		}
		ev, err := raw.event(item.Line, opts)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (r rawEvent) event(line int, opts Options) (Event, error) {
	switch {
	case r.Window != "" && r.Advance != "":
		return Event{}, fmt.Errorf("line %d: event has both window and advance", line)
	case r.Advance != "":
		if r.Snapshot != nil {
			return Event{}, fmt.Errorf("line %d: advance events carry no snapshot", line)
		}
		axis, err := ir.ParseAxis(r.Advance)
		if err != nil {
			return Event{}, fmt.Errorf("line %d: %w", line, err)
		}
		return Event{Kind: EventAdvance, Axis: axis, Line: line}, nil
	case r.Window != "":
		if !opts.AllowAnyWindow && !compiler.KnownWindows[r.Window] {
			return Event{}, fmt.Errorf("line %d: unknown window %q", line, r.Window)
		}
		snap, err := ir.SnapshotFromMap(r.Snapshot)
		if err != nil {
			return Event{}, fmt.Errorf("line %d: %w", line, err)
		}
		return Event{Kind: EventWindow, Window: r.Window, Snapshot: snap, Line: line}, nil
	default:
		return Event{}, fmt.Errorf("line %d: event needs a window or an advance", line)
	}
}
