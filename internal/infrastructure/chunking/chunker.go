package chunking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultMaxTextLen   = 10_000_000
	DefaultMaxChunks    = 100_000
)

// Chunker splits document text into overlapping windows. Window
// boundaries are pulled back to the nearest sentence terminator or
// newline when that break point is no earlier than half the window, so
// chunks avoid mid-sentence cuts without collapsing to tiny slices.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
	MaxTextLen   int
	MaxChunks    int
}

func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
		MaxTextLen:   DefaultMaxTextLen,
		MaxChunks:    DefaultMaxChunks,
	}
}

func isBreakRune(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

func (c *Chunker) checkInput(text string) error {
	if len(text) > c.MaxTextLen {
		return domain.WrapError(domain.ErrTooLarge, "chunk text",
			fmt.Errorf("%d bytes exceeds limit %d", len(text), c.MaxTextLen))
	}
	return nil
}

// Chunk walks the text in fixed-size windows with overlap. Blank text
// yields an empty slice. Concatenating the non-overlapping spans of the
// produced chunks reconstructs the input.
func (c *Chunker) Chunk(text, documentID string) ([]domain.TextChunk, error) {
	if err := c.checkInput(text); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []domain.TextChunk{}, nil
	}

	runes := []rune(text)
	out := make([]domain.TextChunk, 0, len(runes)/c.ChunkSize+1)

	start := 0
	for start < len(runes) {
		if len(out) >= c.MaxChunks {
			return nil, domain.WrapError(domain.ErrTooManyChunks, "chunk text",
				fmt.Errorf("more than %d chunks", c.MaxChunks))
		}

		end := start + c.ChunkSize
		if end > len(runes) {
			end = len(runes)
		} else if end < len(runes) {
			// The window end falls strictly inside the text: pull the
			// boundary back to a sentence break, but never past half
			// the window.
			minBreak := start + c.ChunkSize/2
			for i := end - 1; i >= minBreak; i-- {
				if isBreakRune(runes[i]) {
					end = i + 1
					break
				}
			}
		}

		out = append(out, domain.TextChunk{
			ID:          fmt.Sprintf("%s:%d", documentID, len(out)),
			DocumentID:  documentID,
			Content:     string(runes[start:end]),
			ChunkIndex:  len(out),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(runes) {
			break
		}

		// Step by produced length minus overlap when the break-point
		// adjustment shrank the chunk; always advance at least one rune.
		step := c.ChunkSize - c.ChunkOverlap
		if produced := end - start - c.ChunkOverlap; produced < step {
			step = produced
		}
		if step < 1 {
			step = 1
		}
		start += step
	}

	return out, nil
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// ChunkParagraphs groups whole paragraphs into chunks of at most
// ChunkSize runes. A single paragraph longer than the window falls back
// to window chunking for that paragraph. Paragraphs are trimmed and
// rejoined, so the chunks carry no source offsets; StartOffset and
// EndOffset stay zero.
func (c *Chunker) ChunkParagraphs(text, documentID string) ([]domain.TextChunk, error) {
	if err := c.checkInput(text); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []domain.TextChunk{}, nil
	}

	paragraphs := paragraphSplit.Split(text, -1)
	out := make([]domain.TextChunk, 0, len(paragraphs))
	var buf []string
	bufLen := 0

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if len(out) >= c.MaxChunks {
			return domain.WrapError(domain.ErrTooManyChunks, "chunk paragraphs",
				fmt.Errorf("more than %d chunks", c.MaxChunks))
		}
		out = append(out, domain.TextChunk{
			ID:         fmt.Sprintf("%s:%d", documentID, len(out)),
			DocumentID: documentID,
			Content:    strings.Join(buf, "\n\n"),
			ChunkIndex: len(out),
		})
		buf = buf[:0]
		bufLen = 0
		return nil
	}

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		plen := len([]rune(paragraph))
		if plen > c.ChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
			windows, err := c.Chunk(paragraph, documentID)
			if err != nil {
				return nil, err
			}
			for _, w := range windows {
				if len(out) >= c.MaxChunks {
					return nil, domain.WrapError(domain.ErrTooManyChunks, "chunk paragraphs",
						fmt.Errorf("more than %d chunks", c.MaxChunks))
				}
				w.ID = fmt.Sprintf("%s:%d", documentID, len(out))
				w.ChunkIndex = len(out)
				w.StartOffset = 0
				w.EndOffset = 0
				out = append(out, w)
			}
			continue
		}
		if bufLen > 0 && bufLen+2+plen > c.ChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		buf = append(buf, paragraph)
		bufLen += plen
		if len(buf) > 1 {
			bufLen += 2
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

var sentenceSplit = regexp.MustCompile(`(?m)(?U)[^.!?\n]+[.!?\n]+`)

// ChunkSentences accumulates whole sentences into chunks of at most
// ChunkSize runes, seeding each new chunk with the trailing
// ChunkOverlap runes of the previous chunk for continuity. The seeded
// overlap means a chunk is not a span of the source, so StartOffset
// and EndOffset stay zero.
func (c *Chunker) ChunkSentences(text, documentID string) ([]domain.TextChunk, error) {
	if err := c.checkInput(text); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []domain.TextChunk{}, nil
	}

	sentences := sentenceSplit.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}

	out := make([]domain.TextChunk, 0, len(sentences))
	var b strings.Builder

	flush := func() error {
		content := strings.TrimSpace(b.String())
		if content == "" {
			return nil
		}
		if len(out) >= c.MaxChunks {
			return domain.WrapError(domain.ErrTooManyChunks, "chunk sentences",
				fmt.Errorf("more than %d chunks", c.MaxChunks))
		}
		out = append(out, domain.TextChunk{
			ID:         fmt.Sprintf("%s:%d", documentID, len(out)),
			DocumentID: documentID,
			Content:    content,
			ChunkIndex: len(out),
		})
		seed := trailingRunes(content, c.ChunkOverlap)
		b.Reset()
		if seed != "" {
			b.WriteString(seed)
		}
		return nil
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if b.Len() > 0 && len([]rune(b.String()))+len([]rune(sentence)) > c.ChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// Mode names accepted by ForMode.
const (
	ModeWindow    = "window"
	ModeParagraph = "paragraph"
	ModeSentence  = "sentence"
)

// ModeChunker binds one chunking strategy to the common Chunk entry
// point.
type ModeChunker struct {
	chunk func(text, documentID string) ([]domain.TextChunk, error)
}

func (m ModeChunker) Chunk(text, documentID string) ([]domain.TextChunk, error) {
	return m.chunk(text, documentID)
}

// ForMode selects a chunking strategy by name. Unknown modes fall back
// to window chunking.
func (c *Chunker) ForMode(mode string) ModeChunker {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeParagraph:
		return ModeChunker{chunk: c.ChunkParagraphs}
	case ModeSentence:
		return ModeChunker{chunk: c.ChunkSentences}
	default:
		return ModeChunker{chunk: c.Chunk}
	}
}

func trailingRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
