package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned when a persisted cursor does not match its job kind.
var ErrInvalidCursor = errors.New("invalid job cursor")

// FinderCursor tracks progress of a keyword-driven job.
type FinderCursor struct {
	KeywordIndex   int `json:"keyword_index"`
	PageNumber     int `json:"page_number"`
	CollectedCount int `json:"collected_count"`
}

// ScannerCursor tracks progress of a category-driven job.
type ScannerCursor struct {
	CategoryIndex int `json:"category_index"`
	PageNumber    int `json:"page_number"`
	ScannedCount  int `json:"scanned_count"`
}

// Cursor is a tagged union: exactly one of Finder or Scanner is set, matching the job kind.
// Identifiers already collected are not part of the cursor; the job item table is the seen-set.
type Cursor struct {
	Finder  *FinderCursor  `json:"finder,omitempty"`
	Scanner *ScannerCursor `json:"scanner,omitempty"`
}

// NewCursor returns the starting cursor for a job kind.
func NewCursor(kind JobKind) Cursor {
	if kind == JobKindScanner {
		return Cursor{Scanner: &ScannerCursor{PageNumber: 1}}
	}
	return Cursor{Finder: &FinderCursor{PageNumber: 1}}
}

// Validate checks the cursor shape against kind.
func (c Cursor) Validate(kind JobKind) error {
	switch kind {
	case JobKindFinder:
		if c.Finder == nil || c.Scanner != nil {
			return fmt.Errorf("%w: %s job needs a finder cursor", ErrInvalidCursor, kind)
		}
		if c.Finder.KeywordIndex < 0 || c.Finder.PageNumber < 1 || c.Finder.CollectedCount < 0 {
			return fmt.Errorf("%w: %+v", ErrInvalidCursor, *c.Finder)
		}
	case JobKindScanner:
		if c.Scanner == nil || c.Finder != nil {
			return fmt.Errorf("%w: %s job needs a scanner cursor", ErrInvalidCursor, kind)
		}
		if c.Scanner.CategoryIndex < 0 || c.Scanner.PageNumber < 1 || c.Scanner.ScannedCount < 0 {
			return fmt.Errorf("%w: %+v", ErrInvalidCursor, *c.Scanner)
		}
	default:
		return fmt.Errorf("%w: unknown job kind %q", ErrInvalidCursor, kind)
	}
	return nil
}

// Position returns the current unit index and page number.
func (c Cursor) Position() (unit, page int) {
	if c.Scanner != nil {
		return c.Scanner.CategoryIndex, c.Scanner.PageNumber
	}
	if c.Finder != nil {
		return c.Finder.KeywordIndex, c.Finder.PageNumber
	}
	return 0, 1
}

// Collected returns how many candidates the job has kept so far.
func (c Cursor) Collected() int {
	if c.Scanner != nil {
		return c.Scanner.ScannedCount
	}
	if c.Finder != nil {
		return c.Finder.CollectedCount
	}
	return 0
}

// NextPage returns a copy of the cursor moved to the following page of the same unit.
func (c Cursor) NextPage() Cursor {
	unit, page := c.Position()
	return c.at(unit, page+1)
}

// NextUnit returns a copy of the cursor moved to page 1 of the following unit.
func (c Cursor) NextUnit() Cursor {
	unit, _ := c.Position()
	return c.at(unit+1, 1)
}

// AddCollected returns a copy of the cursor with n more collected candidates.
func (c Cursor) AddCollected(n int) Cursor {
	out := c.clone()
	switch {
	case out.Scanner != nil:
		out.Scanner.ScannedCount += n
	case out.Finder != nil:
		out.Finder.CollectedCount += n
	}
	return out
}

func (c Cursor) at(unit, page int) Cursor {
	out := c.clone()
	switch {
	case out.Scanner != nil:
		out.Scanner.CategoryIndex = unit
		out.Scanner.PageNumber = page
	case out.Finder != nil:
		out.Finder.KeywordIndex = unit
		out.Finder.PageNumber = page
	}
	return out
}

func (c Cursor) clone() Cursor {
	var out Cursor
	if c.Finder != nil {
		f := *c.Finder
		out.Finder = &f
	}
	if c.Scanner != nil {
		s := *c.Scanner
		out.Scanner = &s
	}
	return out
}
