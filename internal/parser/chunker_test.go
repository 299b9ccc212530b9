package parser

import (
	"strings"
	"testing"
)

func TestChunkText_EmptyContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantZero bool
	}{
		{name: "completely empty", content: "", wantZero: true},
		{name: "whitespace only", content: "   \n\n\t  ", wantZero: true},
		{name: "short content", content: "A single short paragraph.", wantZero: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkText(tt.content, DefaultChunkConfig())
			if tt.wantZero && len(chunks) != 0 {
				t.Errorf("expected no chunks, got %d", len(chunks))
			}
			if !tt.wantZero && len(chunks) != 1 {
				t.Errorf("expected 1 chunk, got %d", len(chunks))
			}
		})
	}
}

func TestChunkText_BelowThresholdSingleChunk(t *testing.T) {
	content := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks := ChunkText(content, DefaultChunkConfig())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk below threshold, got %d", len(chunks))
	}
	if chunks[0].Content != content {
		t.Errorf("short content should pass through unchanged")
	}
	if chunks[0].Position != 0 {
		t.Errorf("expected position 0, got %d", chunks[0].Position)
	}
}

func TestChunkText_SplitsAtParagraphs(t *testing.T) {
	para := strings.Repeat("Some sentence about a topic. ", 20) // ~580 chars
	content := para + "\n\n" + para + "\n\n" + para + "\n\n" + para

	config := DefaultChunkConfig()
	chunks := ChunkText(content, config)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Content == "" {
			t.Errorf("chunk %d is empty", i)
		}
		// Overlap can push a chunk slightly past MaxSize.
		if len(c.Content) > config.MaxSize+config.Overlap {
			t.Errorf("chunk %d length %d exceeds max+overlap", i, len(c.Content))
		}
	}
}

func TestChunkText_OversizedParagraphSplitsAtSentences(t *testing.T) {
	// One huge paragraph, no paragraph breaks at all.
	content := strings.Repeat("This is a fairly ordinary sentence about knowledge graphs. ", 60)

	chunks := ChunkText(content, DefaultChunkConfig())
	if len(chunks) < 2 {
		t.Fatalf("expected sentence-level split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasSuffix(strings.TrimSpace(c.Content), ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, c.Content[len(c.Content)-20:])
		}
	}
}

func TestChunkText_PositionsAreSequential(t *testing.T) {
	para := strings.Repeat("Another sentence for the test corpus. ", 25)
	content := para + "\n\n" + para + "\n\n" + para

	chunks := ChunkText(content, DefaultChunkConfig())
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
	}
}

func TestChunkText_OverlapCarriesTrailingWords(t *testing.T) {
	para := strings.Repeat("Overlap test sentence number one. ", 25)
	content := para + "\n\n" + para

	config := DefaultChunkConfig()
	chunks := ChunkText(content, config)
	if len(chunks) < 2 {
		t.Skip("content did not split; nothing to check")
	}

	prev := chunks[0].Content
	tail := prev[len(prev)-20:]
	words := strings.Fields(tail)
	last := words[len(words)-1]
	if !strings.Contains(chunks[1].Content[:config.Overlap+10], last) {
		t.Errorf("expected overlap from previous chunk in %q", chunks[1].Content[:40])
	}
}

func TestShouldChunk(t *testing.T) {
	config := DefaultChunkConfig()
	if ShouldChunk("short", config) {
		t.Error("short content should not chunk")
	}
	if !ShouldChunk(strings.Repeat("x", config.Threshold+1), config) {
		t.Error("long content should chunk")
	}
}
