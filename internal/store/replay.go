package store

import (
	"context"
	"fmt"

	"github.com/roach88/csc/internal/ir"
)

// Parity is the result of comparing two journals attempt by attempt.
type Parity struct {
	LeftRun     string
	RightRun    string
	LeftCount   int
	RightCount  int
	LeftDigest  string
	RightDigest string

	// Divergence is the first attempt that differs, or nil when the
	// journals are identical.
	Divergence *Divergence
}

// Divergence locates the first mismatching attempt. A side that ran out
// of attempts has an empty line.
type Divergence struct {
	Index int    `json:"index"`
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
}

// Match reports whether the two journals are identical.
func (p Parity) Match() bool {
	return p.Divergence == nil
}

func (p Parity) String() string {
	if p.Match() {
		return fmt.Sprintf("parity ok: %d attempts, digest %s", p.LeftCount, p.LeftDigest)
	}
	d := p.Divergence
	return fmt.Sprintf("parity mismatch at attempt %d (left %d attempts, right %d)\n  left:  %s\n  right: %s",
		d.Index, p.LeftCount, p.RightCount, orNone(d.Left), orNone(d.Right))
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

// CompareRuns reads both runs and compares their journals.
func (s *Store) CompareRuns(ctx context.Context, left, right string) (Parity, error) {
	for _, id := range []string{left, right} {
		if _, err := s.ReadRun(ctx, id); err != nil {
			return Parity{}, err
		}
	}
	la, err := s.ReadAttempts(ctx, left, Filter{})
	if err != nil {
		return Parity{}, err
	}
	ra, err := s.ReadAttempts(ctx, right, Filter{})
	if err != nil {
		return Parity{}, err
	}
	p, err := Compare(la, ra)
	if err != nil {
		return Parity{}, err
	}
	p.LeftRun, p.RightRun = left, right
	return p, nil
}

// Compare diffs two attempt sequences over their canonical journal lines.
// Seq is part of the line, so both sequences must start from the same
// clock position to match.
func Compare(left, right []ir.DecisionAttempt) (Parity, error) {
	p := Parity{LeftCount: len(left), RightCount: len(right)}

	var err error
	if p.LeftDigest, err = ir.JournalDigest(left); err != nil {
		return Parity{}, fmt.Errorf("digest left: %w", err)
	}
	if p.RightDigest, err = ir.JournalDigest(right); err != nil {
		return Parity{}, fmt.Errorf("digest right: %w", err)
	}

	n := max(len(left), len(right))
	for i := 0; i < n; i++ {
		var l, r string
		if i < len(left) {
			line, err := left[i].CanonicalJSON()
			if err != nil {
				return Parity{}, err
			}
			l = string(line)
		}
		if i < len(right) {
			line, err := right[i].CanonicalJSON()
			if err != nil {
				return Parity{}, err
			}
			r = string(line)
		}
		if l != r {
			p.Divergence = &Divergence{Index: i, Left: l, Right: r}
			break
		}
	}
	return p, nil
}
