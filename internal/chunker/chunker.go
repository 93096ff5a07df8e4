package chunker

import (
	"strings"
	"unicode/utf8"

	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
)

// Splitter turns raw document text into ordered segments for embedding.
type Splitter interface {
	Split(text string) ([]string, error)
}

// Recursive splits on the coarsest boundary available and re-splits
// oversized pieces on finer ones: paragraph, line, word, raw runes.
// Lengths are rune counts. Adjacent chunks share up to Overlap trailing
// runes of context, clamped so a chunk never exceeds Size.
type Recursive struct {
	Size    int
	Overlap int
}

var boundaries = []string{"\n\n", "\n", " "}

func NewRecursive(size, overlap int) *Recursive {
	return &Recursive{Size: size, Overlap: overlap}
}

func (r *Recursive) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErr.Chunking("text is empty or whitespace only")
	}
	if r.Size <= 0 {
		return nil, appErr.Chunking("chunk size must be positive, got %d", r.Size)
	}
	if r.Overlap < 0 || r.Overlap >= r.Size {
		return nil, appErr.Chunking("overlap %d must be in [0, size) with size %d", r.Overlap, r.Size)
	}

	pieces := r.split(text, boundaries)
	chunks := r.merge(pieces)
	if len(chunks) == 0 {
		return nil, appErr.Chunking("splitting produced no usable chunks")
	}
	return chunks, nil
}

// split returns pieces that each fit within Size, keeping separators
// attached so concatenating the pieces reproduces the input exactly.
func (r *Recursive) split(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= r.Size {
		return []string{text}
	}
	if len(seps) == 0 {
		return splitRunes(text, r.Size)
	}
	parts := strings.SplitAfter(text, seps[0])
	pieces := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) > r.Size {
			pieces = append(pieces, r.split(part, seps[1:])...)
			continue
		}
		pieces = append(pieces, part)
	}
	return pieces
}

// merge greedily packs pieces into chunks up to Size, seeding each new
// chunk with the trailing Overlap runes of the one before it.
func (r *Recursive) merge(pieces []string) []string {
	var chunks []string
	var cur string
	flush := func() {
		if strings.TrimSpace(cur) != "" {
			chunks = append(chunks, cur)
		}
	}
	for _, piece := range pieces {
		if cur == "" {
			cur = piece
			continue
		}
		if utf8.RuneCountInString(cur)+utf8.RuneCountInString(piece) <= r.Size {
			cur += piece
			continue
		}
		flush()
		tail := tailRunes(cur, r.Overlap)
		// clamp the carried context so the new chunk still fits
		if room := r.Size - utf8.RuneCountInString(piece); utf8.RuneCountInString(tail) > room {
			if room <= 0 {
				tail = ""
			} else {
				tail = tailRunes(tail, room)
			}
		}
		cur = tail + piece
	}
	flush()
	return chunks
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func tailRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
