package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownMode rejects search mode names the harness does not recognize.
var ErrUnknownMode = errors.New("store: unknown search mode")

// SearchKind selects between an exact scan and an approximate index.
type SearchKind string

const (
	SearchExact SearchKind = "exact"
	SearchIVF   SearchKind = "ivf"
	SearchHNSW  SearchKind = "hnsw"
)

// SearchMode is a parsed tuning setting: the index kind plus its effort
// parameter (probe count for IVF, ef_search for HNSW).
type SearchMode struct {
	Kind   SearchKind
	Effort int
}

// ParseSearchMode parses mode names of the form "exact", "ivf<probes>"
// (e.g. "ivf16") or "hnsw<ef>" (e.g. "hnsw64").
func ParseSearchMode(name string) (SearchMode, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	switch {
	case name == string(SearchExact):
		return SearchMode{Kind: SearchExact}, nil
	case strings.HasPrefix(name, string(SearchIVF)):
		return parseEffort(SearchIVF, name)
	case strings.HasPrefix(name, string(SearchHNSW)):
		return parseEffort(SearchHNSW, name)
	default:
		return SearchMode{}, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

func parseEffort(kind SearchKind, name string) (SearchMode, error) {
	suffix := strings.TrimPrefix(name, string(kind))
	effort, err := strconv.Atoi(suffix)
	if err != nil || effort <= 0 {
		return SearchMode{}, fmt.Errorf("%w: %q (want e.g. %q)", ErrUnknownMode, name, string(kind)+"16")
	}
	return SearchMode{Kind: kind, Effort: effort}, nil
}

// String renders the mode back to its canonical name.
func (m SearchMode) String() string {
	if m.Kind == SearchExact {
		return string(SearchExact)
	}
	return fmt.Sprintf("%s%d", m.Kind, m.Effort)
}
