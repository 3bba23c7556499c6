package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

const (
	defaultChunkTokens   = 400
	defaultOverlapTokens = 80
)

// Chunker splits manuals into retrieval chunks. Level 1 and 2 headings start a
// new chunk and are carried as context; procedure steps stay together until
// the token budget is hit, with a short overlap into the next chunk.
type Chunker struct {
	maxTokens     int
	overlapTokens int
}

func NewChunker(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = defaultChunkTokens
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		overlapTokens = defaultOverlapTokens
		if overlapTokens >= maxTokens {
			overlapTokens = maxTokens / 4
		}
	}
	return &Chunker{maxTokens: maxTokens, overlapTokens: overlapTokens}
}

func (c *Chunker) Chunk(ctx context.Context, markdown string) []model.TextChunk {
	logger := logutil.GetLogger(ctx)
	reader := text.NewReader([]byte(markdown))
	doc := goldmark.New().Parser().Parse(reader)
	source := reader.Source()

	var (
		chunks         []model.TextChunk
		current        []string
		currentTokens  int
		currentHeading string
		position       int
		fresh          bool
	)

	flush := func(keepOverlap bool) {
		if len(current) == 0 || !fresh {
			current, currentTokens, fresh = nil, 0, false
			return
		}
		content := strings.Join(current, "\n\n")
		if currentHeading != "" {
			content = "Section: " + currentHeading + "\n" + content
		}
		chunks = append(chunks, model.TextChunk{
			Content:    content,
			TokenCount: estimateTokens(content),
			Position:   position,
			Heading:    currentHeading,
		})
		position++

		if keepOverlap && len(current) > 1 {
			overlapTokens := 0
			var overlap []string
			for i := len(current) - 1; i >= 0; i-- {
				t := estimateTokens(current[i])
				if overlapTokens+t > c.overlapTokens {
					break
				}
				overlapTokens += t
				overlap = append([]string{current[i]}, overlap...)
			}
			current, currentTokens = overlap, overlapTokens
		} else {
			current, currentTokens = nil, 0
		}
		fresh = false
	}

	add := func(block string) {
		tokens := estimateTokens(block)
		if currentTokens > 0 && currentTokens+tokens > c.maxTokens {
			flush(true)
		}
		current = append(current, block)
		currentTokens += tokens
		fresh = true
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			heading := extractText(n, source)
			if n.Level <= 2 {
				flush(false)
				currentHeading = heading
				continue
			}
			if heading != "" {
				add(heading)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var sb strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(source))
			}
			if block := strings.TrimSpace(sb.String()); block != "" {
				add(block)
			}
		case *ast.List:
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				if txt := extractText(item, source); txt != "" {
					add("- " + txt)
				}
			}
		default:
			if txt := extractText(n, source); txt != "" {
				add(txt)
			}
		}
	}
	flush(false)
	logger.Debug("chunking completed", zap.Int("size", len(markdown)), zap.Int("chunks", len(chunks)))
	return chunks
}

// estimateTokens counts words plus one per non-ASCII rune.
func estimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := node.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
