package usecase

import (
	"regexp"
	"strings"
)

const (
	// MaxChunkChars bounds a chunk unless one line alone is longer.
	MaxChunkChars = 500

	unknownSpeaker = "Unknown Speaker"
)

type Chunk struct {
	Index       int
	Content     string
	SpeakerName string
}

var leadingSpeaker = regexp.MustCompile(`^([\p{L}\p{N} .'_-]+):\s*`)

// ExtractSpeaker returns the "Name: " prefix of text, or "Unknown Speaker".
func ExtractSpeaker(text string) string {
	m := leadingSpeaker.FindStringSubmatch(text)
	if m == nil {
		return unknownSpeaker
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return unknownSpeaker
	}
	return name
}

// ChunkTranscript groups whole transcript lines into chunks of at most max
// characters, newlines included. A line is never split, so a single line
// longer than max becomes its own chunk. Blank lines are dropped.
func ChunkTranscript(text string, max int) []Chunk {
	var chunks []Chunk
	var current []string
	size := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, "\n")
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Content:     content,
			SpeakerName: ExtractSpeaker(content),
		})
		current = nil
		size = 0
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		added := len(line)
		if len(current) > 0 {
			added++ // joining newline
		}
		if len(current) > 0 && size+added > max {
			flush()
			added = len(line)
		}
		current = append(current, line)
		size += added
	}
	flush()

	return chunks
}
