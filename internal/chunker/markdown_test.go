package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
)

func TestMarkdownGroupsBlocksByHeading(t *testing.T) {
	text := "# Install\n\nDownload the binary.\n\nRun the setup script.\n\n## Usage\n\nStart the server."
	chunks, err := NewMarkdown(400, 40).Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Contains(t, chunks[0], "Heading: Install")
	require.Contains(t, chunks[0], "Download the binary.")
	require.Contains(t, chunks[0], "Run the setup script.")
	require.Contains(t, chunks[1], "Heading: Usage")
	require.Contains(t, chunks[1], "Start the server.")
}

func TestMarkdownResplitsOversizedSection(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Big\n\n")
	for i := 0; i < 30; i++ {
		sb.WriteString("A fairly long paragraph that keeps going for a while.\n\n")
	}
	chunks, err := NewMarkdown(120, 20).Split(sb.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, utf8.RuneCountInString(chunk), 120)
	}
}

func TestMarkdownKeepsCodeBlocks(t *testing.T) {
	text := "# Example\n\n```go\nfmt.Println(\"hi\")\n```\n"
	chunks, err := NewMarkdown(400, 40).Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "fmt.Println")
}

func TestMarkdownRejectsEmptyInput(t *testing.T) {
	_, err := NewMarkdown(400, 40).Split(" \n ")
	require.Error(t, err)
	require.True(t, appErr.IsChunking(err))
}
