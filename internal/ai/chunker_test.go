package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkerHeadings(t *testing.T) {
	md := "# Brakes\n\nRemove the caliper bolts.\n\n## Rotors\n\nCheck rotor runout with a dial gauge.\n\n### Torque\n\nTighten to 110 Nm.\n"
	chunks := NewChunker(0, 0).Chunk(context.Background(), md)
	require.Len(t, chunks, 2)
	require.Equal(t, "Brakes", chunks[0].Heading)
	require.Equal(t, "Section: Brakes\nRemove the caliper bolts.", chunks[0].Content)
	require.Equal(t, "Rotors", chunks[1].Heading)
	require.Contains(t, chunks[1].Content, "Torque")
	require.Contains(t, chunks[1].Content, "Tighten to 110 Nm.")
	require.Equal(t, 0, chunks[0].Position)
	require.Equal(t, 1, chunks[1].Position)
}

func TestChunkerBudgetWithoutOverlap(t *testing.T) {
	paras := []string{"p1 alpha beta gamma", "p2 alpha beta gamma", "p3 alpha beta gamma", "p4 alpha beta gamma", "p5 alpha beta gamma"}
	chunks := NewChunker(10, 3).Chunk(context.Background(), strings.Join(paras, "\n\n"))
	require.Len(t, chunks, 3)
	require.Equal(t, "p1 alpha beta gamma\n\np2 alpha beta gamma", chunks[0].Content)
	require.Equal(t, "p5 alpha beta gamma", chunks[2].Content)
	for _, c := range chunks {
		require.LessOrEqual(t, c.TokenCount, 10)
	}
}

func TestChunkerOverlap(t *testing.T) {
	paras := []string{"p1 alpha beta gamma", "p2 alpha beta gamma", "p3 alpha beta gamma", "p4 alpha beta gamma", "p5 alpha beta gamma"}
	chunks := NewChunker(10, 5).Chunk(context.Background(), strings.Join(paras, "\n\n"))
	require.Len(t, chunks, 4)
	require.True(t, strings.HasPrefix(chunks[1].Content, "p2 "))
	require.True(t, strings.HasPrefix(chunks[3].Content, "p4 "))
}

func TestChunkerListsAndEmpty(t *testing.T) {
	chunks := NewChunker(0, 0).Chunk(context.Background(), "")
	require.Empty(t, chunks)

	chunks = NewChunker(0, 0).Chunk(context.Background(), "## Oil change\n\n- Drain the oil\n- Replace the filter\n")
	require.Len(t, chunks, 1)
	require.Equal(t, "Section: Oil change\n- Drain the oil\n\n- Replace the filter", chunks[0].Content)
}
