package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
)

// Markdown groups top-level blocks under their nearest h1/h2 heading so
// a chunk keeps its section context. Sections that still exceed Size
// are re-split with the recursive splitter.
type Markdown struct {
	Size     int
	Overlap  int
	fallback *Recursive
}

func NewMarkdown(size, overlap int) *Markdown {
	return &Markdown{
		Size:     size,
		Overlap:  overlap,
		fallback: NewRecursive(size, overlap),
	}
}

func (m *Markdown) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErr.Chunking("text is empty or whitespace only")
	}
	if m.Overlap < 0 || m.Overlap >= m.Size {
		return nil, appErr.Chunking("overlap %d must be in [0, size) with size %d", m.Overlap, m.Size)
	}

	md := goldmark.New()
	reader := gtext.NewReader([]byte(text))
	doc := md.Parser().Parse(reader)
	source := reader.Source()

	var chunks []string
	var section []string
	var heading string

	flush := func() error {
		if len(section) == 0 {
			return nil
		}
		content := strings.Join(section, "\n\n")
		if heading != "" {
			content = "Heading: " + heading + "\n" + content
		}
		section = nil
		if utf8.RuneCountInString(content) <= m.Size {
			chunks = append(chunks, content)
			return nil
		}
		parts, err := m.fallback.Split(content)
		if err != nil {
			return err
		}
		chunks = append(chunks, parts...)
		return nil
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok && h.Level <= 2 {
			if err := flush(); err != nil {
				return nil, err
			}
			heading = string(h.Text(source))
			continue
		}
		txt := blockText(node, source)
		if txt == "" {
			continue
		}
		section = append(section, txt)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, appErr.Chunking("splitting produced no usable chunks")
	}
	return chunks, nil
}

func blockText(n ast.Node, source []byte) string {
	if fc, ok := n.(*ast.FencedCodeBlock); ok {
		var sb strings.Builder
		for i := 0; i < fc.Lines().Len(); i++ {
			line := fc.Lines().At(i)
			sb.Write(line.Value(source))
		}
		return strings.TrimSpace(sb.String())
	}
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).SoftLineBreak() || node.(*ast.Text).HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
