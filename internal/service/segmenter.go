package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ChunkConfig controls how extracted document text is segmented.
type ChunkConfig struct {
	Size       int
	Overlap    int
	Separators []string
}

// DefaultChunkConfig provides the default segmentation parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:       1000,
		Overlap:    200,
		Separators: []string{"\n\n", "\n", " ", ""},
	}
}

// Segment is one indexed chunk of text.
type Segment struct {
	Index int
	Text  string
}

// Segmenter splits text on a layered separator hierarchy into chunks of at
// most Size runes, repeating up to Overlap runes between neighbours.
type Segmenter struct {
	cfg ChunkConfig
}

// NewSegmenter creates a Segmenter, rejecting configurations that cannot make progress.
func NewSegmenter(cfg ChunkConfig) (*Segmenter, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.Size)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", cfg.Size, cfg.Overlap)
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = DefaultChunkConfig().Separators
	}
	return &Segmenter{cfg: cfg}, nil
}

// Segment splits a single text. Empty input yields no segments.
func (s *Segmenter) Segment(text string) []Segment {
	return s.SegmentPages([]string{text})
}

// SegmentPages splits each page independently and numbers the resulting
// chunks densely from 0 in page order.
func (s *Segmenter) SegmentPages(pages []string) []Segment {
	var out []Segment
	for _, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		for _, chunk := range s.split(page, s.cfg.Separators) {
			out = append(out, Segment{Index: len(out), Text: chunk})
		}
	}
	return out
}

func (s *Segmenter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitNonEmpty(text, separator) {
		if runeLen(piece) < s.cfg.Size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge greedily packs pieces into chunks, carrying a tail of at most
// Overlap runes into the next chunk.
func (s *Segmenter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	var (
		docs    []string
		current []string
		total   int
	)
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n+joinLen() > s.cfg.Size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.cfg.Overlap || (total+n+joinLen() > s.cfg.Size && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, piece)
		if len(current) > 1 {
			total += n + sepLen
		} else {
			total += n
		}
	}
	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func splitNonEmpty(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, separator)
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
