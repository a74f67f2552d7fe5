// Package chunk splits raw document text into bounded segments suitable for
// embedding. Two policies are supported: a fixed-size sliding window with
// overlap, and paragraph-coherent packing under a character budget.
package chunk

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Policy names a chunking strategy.
type Policy string

const (
	PolicyFixed     Policy = "fixed"
	PolicyParagraph Policy = "paragraph"
)

// Defaults match the sizes the corpus was originally indexed with.
const (
	DefaultSize    = 800
	DefaultOverlap = 120
	DefaultBudget  = 1200
)

var blankLine = regexp.MustCompile(`\n\s*\n`)

// Splitter produces ordered, non-empty chunks from raw text.
type Splitter struct {
	policy  Policy
	size    int
	overlap int
	budget  int
}

// Settings configures a Splitter. Zero values take the package defaults.
type Settings struct {
	Policy  Policy
	Size    int // fixed policy: window size in runes
	Overlap int // fixed policy: window overlap in runes
	Budget  int // paragraph policy: max chunk length in runes
}

// New validates settings and builds a Splitter.
func New(s Settings) (*Splitter, error) {
	if s.Policy == "" {
		s.Policy = PolicyFixed
	}
	if s.Size == 0 {
		s.Size = DefaultSize
	}
	if s.Overlap == 0 && s.Policy == PolicyFixed && s.Size == DefaultSize {
		s.Overlap = DefaultOverlap
	}
	if s.Budget == 0 {
		s.Budget = DefaultBudget
	}

	switch s.Policy {
	case PolicyFixed:
		if s.Size <= 0 {
			return nil, errors.New("chunk: size must be greater than zero")
		}
		if s.Overlap < 0 {
			return nil, errors.New("chunk: overlap cannot be negative")
		}
		if s.Overlap >= s.Size {
			return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", s.Overlap, s.Size)
		}
	case PolicyParagraph:
		if s.Budget <= 0 {
			return nil, errors.New("chunk: budget must be greater than zero")
		}
	default:
		return nil, fmt.Errorf("chunk: unknown policy %q", s.Policy)
	}

	return &Splitter{policy: s.Policy, size: s.Size, overlap: s.Overlap, budget: s.Budget}, nil
}

// Split chunks text under the configured policy. Whitespace-only input
// yields no chunks; every returned chunk is non-empty after trimming.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.policy == PolicyParagraph {
		return s.packParagraphs(text)
	}
	return s.slideWindow(text)
}

// slideWindow emits trimmed windows of size runes, advancing by size-overlap.
func (s *Splitter) slideWindow(text string) []string {
	runes := []rune(text)
	step := s.size - s.overlap
	if step < 1 {
		step = 1
	}

	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + s.size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[i:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// packParagraphs greedily packs blank-line-separated paragraphs into chunks
// under the budget, hard-splitting any single paragraph that exceeds it.
func (s *Splitter) packParagraphs(text string) []string {
	var out []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			out = append(out, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, para := range blankLine.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)

		if len(runes) > s.budget {
			flush()
			for i := 0; i < len(runes); i += s.budget {
				end := i + s.budget
				if end > len(runes) {
					end = len(runes)
				}
				piece := strings.TrimSpace(string(runes[i:end]))
				if piece != "" {
					out = append(out, piece)
				}
			}
			continue
		}

		// +2 for the paragraph separator when the chunk is non-empty.
		if currentLen > 0 && currentLen+2+len(runes) > s.budget {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += len(runes)
	}
	flush()
	return out
}
