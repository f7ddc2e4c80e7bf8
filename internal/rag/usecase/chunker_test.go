package usecase

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nonBlankLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func TestChunkTranscriptRoundTrip(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "Speaker %d: line number %d says something about the roadmap\n", i%3, i)
		if i%7 == 0 {
			b.WriteString("\n")
		}
	}
	b.WriteString("Ann: " + strings.Repeat("x", 700) + "\n")
	b.WriteString("Bob: after the long line")
	transcript := b.String()

	chunks := ChunkTranscript(transcript, MaxChunkChars)
	require.NotEmpty(t, chunks)

	var joined []string
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		lines := strings.Split(c.Content, "\n")
		if len(lines) > 1 {
			assert.LessOrEqual(t, len(c.Content), MaxChunkChars, "chunk %d", i)
		}
		joined = append(joined, c.Content)
	}
	assert.Equal(t, nonBlankLines(transcript), strings.Split(strings.Join(joined, "\n"), "\n"))
}

func TestChunkTranscriptOversizedLine(t *testing.T) {
	long := "Ann: " + strings.Repeat("y", 600)
	chunks := ChunkTranscript("Bob: short\n"+long+"\nCid: tail", MaxChunkChars)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Bob: short", chunks[0].Content)
	assert.Equal(t, long, chunks[1].Content)
	assert.Equal(t, "Cid: tail", chunks[2].Content)
	assert.Equal(t, []string{"Bob", "Ann", "Cid"}, []string{chunks[0].SpeakerName, chunks[1].SpeakerName, chunks[2].SpeakerName})
}

func TestChunkTranscriptPacksLines(t *testing.T) {
	chunks := ChunkTranscript("John: Hi team\nSarah: Hello", MaxChunkChars)
	require.Len(t, chunks, 1)
	assert.Equal(t, "John: Hi team\nSarah: Hello", chunks[0].Content)
	assert.Equal(t, "John", chunks[0].SpeakerName)

	assert.Empty(t, ChunkTranscript("\n \n", MaxChunkChars))
}

func TestExtractSpeaker(t *testing.T) {
	assert.Equal(t, "John", ExtractSpeaker("John: hello"))
	assert.Equal(t, "Speaker 1", ExtractSpeaker("Speaker 1: hey"))
	assert.Equal(t, "Unknown Speaker", ExtractSpeaker("no prefix here"))
	assert.Equal(t, "Unknown Speaker", ExtractSpeaker(""))
}
