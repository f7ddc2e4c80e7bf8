package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// UnparsedTranscript replaces a transcript no known shape could decode.
const UnparsedTranscript = "Transcript could not be parsed"

const defaultSpeaker = "Speaker"

// ShapeKind names the source layout a transcript was decoded from.
type ShapeKind string

const (
	ShapeWordUtterances    ShapeKind = "word_utterances"
	ShapeUtterances        ShapeKind = "utterances"
	ShapeUtteranceEnvelope ShapeKind = "utterance_envelope"
	ShapeFullText          ShapeKind = "full_text"
	ShapeNested            ShapeKind = "nested"
	ShapeTranscriptions    ShapeKind = "transcriptions"
	ShapeMessages          ShapeKind = "messages"
	ShapePlainText         ShapeKind = "plain_text"
	ShapeUnrecognized      ShapeKind = "unrecognized"
)

// Transcript is a transcript in canonical form: one "{speaker}: {text}"
// line per utterance.
type Transcript struct {
	Shape    ShapeKind
	Text     string
	Speakers []string
}

func (t Transcript) Parsed() bool {
	return t.Shape != ShapeUnrecognized
}

func unrecognized() Transcript {
	return Transcript{Shape: ShapeUnrecognized, Text: UnparsedTranscript}
}

type word struct {
	Word string `json:"word"`
}

type utterance struct {
	Speaker json.RawMessage `json:"speaker"`
	Text    string          `json:"text"`
	Words   []word          `json:"words"`
}

func (u utterance) speaker() string {
	var name string
	if err := json.Unmarshal(u.Speaker, &name); err == nil {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
		return defaultSpeaker
	}
	var n json.Number
	if err := json.Unmarshal(u.Speaker, &n); err == nil {
		return fmt.Sprintf("Speaker %s", n.String())
	}
	return defaultSpeaker
}

func (u utterance) text() string {
	text := u.Text
	if strings.TrimSpace(text) == "" && len(u.Words) > 0 {
		parts := make([]string, 0, len(u.Words))
		for _, w := range u.Words {
			parts = append(parts, w.Word)
		}
		text = strings.Join(parts, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

func renderUtterances(utterances []utterance) string {
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		text := u.text()
		if text == "" {
			continue
		}
		lines = append(lines, u.speaker()+": "+text)
	}
	return strings.Join(lines, "\n")
}

// envelope holds every object field a known shape may carry.
type envelope struct {
	Utterances     []utterance       `json:"utterances"`
	FullTranscript string            `json:"full_transcript"`
	Transcription  json.RawMessage   `json:"transcription"`
	Result         json.RawMessage   `json:"result"`
	Transcriptions []json.RawMessage `json:"transcriptions"`
	Messages       []utterance       `json:"messages"`
	Text           string            `json:"text"`
}

// NormalizeTranscript decodes a transcript artifact of any known shape into
// canonical text. Unknown shapes yield the UnparsedTranscript sentinel.
func NormalizeTranscript(raw []byte) Transcript {
	t := decodeShape(bytes.TrimSpace(raw), 0)
	if !t.Parsed() || strings.TrimSpace(t.Text) == "" {
		return unrecognized()
	}
	t.Speakers = ExtractSpeakers(t.Text)
	return t
}

const maxNesting = 4

func decodeShape(raw []byte, depth int) Transcript {
	if len(raw) == 0 || depth > maxNesting {
		return unrecognized()
	}

	switch raw[0] {
	case '[':
		var utterances []utterance
		if err := json.Unmarshal(raw, &utterances); err != nil {
			return unrecognized()
		}
		kind := ShapeUtterances
		for _, u := range utterances {
			if len(u.Words) > 0 {
				kind = ShapeWordUtterances
				break
			}
		}
		return Transcript{Shape: kind, Text: renderUtterances(utterances)}

	case '{':
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return unrecognized()
		}
		return decodeEnvelope(env, depth)

	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return unrecognized()
		}
		return Transcript{Shape: ShapePlainText, Text: strings.TrimSpace(s)}

	default:
		if !json.Valid(raw) {
			// not JSON at all: the artifact is the text itself
			return Transcript{Shape: ShapePlainText, Text: string(raw)}
		}
		return unrecognized()
	}
}

// decodeEnvelope prefers speaker-attributed utterances over merged text.
func decodeEnvelope(env envelope, depth int) Transcript {
	if text := renderUtterances(env.Utterances); text != "" {
		return Transcript{Shape: ShapeUtteranceEnvelope, Text: text}
	}

	for _, item := range env.Transcriptions {
		var wrapper struct {
			Transcription json.RawMessage `json:"transcription"`
		}
		if err := json.Unmarshal(item, &wrapper); err != nil || len(wrapper.Transcription) == 0 {
			continue
		}
		if inner := decodeShape(wrapper.Transcription, depth+1); inner.Parsed() && inner.Text != "" {
			return Transcript{Shape: ShapeTranscriptions, Text: inner.Text}
		}
	}

	for _, nested := range []json.RawMessage{env.Transcription, env.Result} {
		if len(nested) == 0 {
			continue
		}
		if inner := decodeShape(bytes.TrimSpace(nested), depth+1); inner.Parsed() && inner.Text != "" {
			return Transcript{Shape: ShapeNested, Text: inner.Text}
		}
	}

	if text := strings.TrimSpace(env.FullTranscript); text != "" {
		return Transcript{Shape: ShapeFullText, Text: text}
	}

	if text := renderUtterances(env.Messages); text != "" {
		return Transcript{Shape: ShapeMessages, Text: text}
	}

	if text := strings.TrimSpace(env.Text); text != "" {
		return Transcript{Shape: ShapePlainText, Text: text}
	}

	return unrecognized()
}

var speakerLine = regexp.MustCompile(`(?m)^([^:\n]+):`)

// ExtractSpeakers lists the distinct line prefixes of a canonical transcript
// in order of first appearance.
func ExtractSpeakers(text string) []string {
	seen := make(map[string]bool)
	var speakers []string
	for _, m := range speakerLine.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		speakers = append(speakers, name)
	}
	return speakers
}
