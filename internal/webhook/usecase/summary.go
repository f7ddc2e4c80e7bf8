package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/ai"
)

const (
	// FallbackSummary is stored when no summary could be produced at all.
	FallbackSummary = "Meeting transcript processed successfully. Please check the full transcript for details."

	summaryUnavailable = "Summary unavailable"
	emptySummary       = "Summary couldnt be generated"
)

var summaryOptions = ai.GenerateOptions{Temperature: 0.3, MaxOutputTokens: 2000}

const summaryPrompt = `Analyze this meeting transcript and extract key information.

IMPORTANT: Return ONLY valid JSON with NO markdown formatting, NO code blocks, and NO extra text before or after.

{
    "summary": "2-3 sentence summary of main discussion points, decisions, and outcomes. Be specific and include any important context.",
    "actionItems": ["specific action with owner if mentioned", "specific action with owner if mentioned"]
}

Guidelines:
- For summary: Focus on decisions made, project status, and key outcomes
- For actionItems: Extract only concrete, actionable tasks mentioned. Include who should do it if specified. If no clear actions mentioned, use empty array []
- Ensure all strings are properly escaped with no unescaped quotes
- Return valid, parseable JSON

Meeting transcript to analyze:
%s`

// SummaryResult is what the pipeline stores for a meeting.
type SummaryResult struct {
	Summary     string
	ActionItems []meetingdomain.ActionItem
}

func fallbackResult() SummaryResult {
	return SummaryResult{Summary: FallbackSummary, ActionItems: []meetingdomain.ActionItem{}}
}

var (
	fencePrefix = regexp.MustCompile("^```(?:json)?\\n?")
	fenceSuffix = regexp.MustCompile("\\n?```$")
	jsonObject  = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ParseSummary extracts a summary and action items from a model response.
// Well-formed JSON is parsed strictly; otherwise whatever fields survive a
// truncated or malformed response are recovered. ok is false when nothing
// could be recovered, in which case the fallback result is returned.
func ParseSummary(text string) (SummaryResult, bool) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return fallbackResult(), false
	}
	if strings.HasPrefix(clean, "```") {
		clean = fenceSuffix.ReplaceAllString(fencePrefix.ReplaceAllString(clean, ""), "")
	}

	var parsed struct {
		Summary     string          `json:"summary"`
		ActionItems json.RawMessage `json:"actionItems"`
	}
	var items []string

	strict := false
	if match := jsonObject.FindString(clean); match != "" {
		if err := json.Unmarshal([]byte(match), &parsed); err == nil {
			strict = true
			items = stringItems(parsed.ActionItems)
		}
	}

	if !strict {
		summary, hasSummary := partialString(clean, "summary")
		partial, hasItems := partialStrings(clean, "actionItems")
		if !hasSummary && !hasItems {
			return fallbackResult(), false
		}

		parsed.Summary = summaryUnavailable
		if hasSummary {
			parsed.Summary = summary
		}
		items = partial
	}

	result := SummaryResult{Summary: strings.TrimSpace(parsed.Summary), ActionItems: []meetingdomain.ActionItem{}}
	if result.Summary == "" {
		result.Summary = emptySummary
	}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		result.ActionItems = append(result.ActionItems, meetingdomain.ActionItem{
			ID:   len(result.ActionItems) + 1,
			Text: item,
		})
	}
	return result, true
}

// partialString returns the string value of key in a possibly truncated JSON
// object. An unterminated value is returned up to the end of the input.
func partialString(s, key string) (string, bool) {
	i := valueStart(s, key)
	if i < 0 || s[i] != '"' {
		return "", false
	}
	value, _, _ := scanString(s, i)
	return value, true
}

// partialStrings returns the complete string entries of the array under key.
// Scanning stops at the closing bracket or at the first unterminated string;
// nested arrays and objects are skipped.
func partialStrings(s, key string) ([]string, bool) {
	i := valueStart(s, key)
	if i < 0 || s[i] != '[' {
		return nil, false
	}

	var out []string
	for i++; i < len(s); {
		switch s[i] {
		case ']':
			return out, true
		case '"':
			value, next, closed := scanString(s, i)
			if !closed {
				return out, true
			}
			out = append(out, value)
			i = next
		case '{', '[':
			i = skipNested(s, i)
		default:
			i++
		}
	}
	return out, true
}

// valueStart returns the index of the value following "key":, or -1.
func valueStart(s, key string) int {
	k := strings.Index(s, `"`+key+`"`)
	if k < 0 {
		return -1
	}
	i := skipSpace(s, k+len(key)+2)
	if i >= len(s) || s[i] != ':' {
		return -1
	}
	i = skipSpace(s, i+1)
	if i >= len(s) {
		return -1
	}
	return i
}

func skipSpace(s string, i int) int {
	for i < len(s) && strings.IndexByte(" \t\r\n", s[i]) >= 0 {
		i++
	}
	return i
}

// scanString reads the JSON string whose opening quote is at s[start]. It
// returns the decoded text, the index after the closing quote and whether
// the string was terminated.
func scanString(s string, start int) (string, int, bool) {
	for j := start + 1; j < len(s); j++ {
		switch s[j] {
		case '"':
			return decodeString(s[start+1 : j]), j + 1, true
		case '\\':
			if j+1 >= len(s) {
				return decodeString(s[start+1 : j]), len(s), false
			}
			j++
		}
	}
	return decodeString(s[start+1:]), len(s), false
}

var escapes = strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n", `\t`, "\t", `\/`, "/")

func decodeString(raw string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &out); err == nil {
		return out
	}
	return escapes.Replace(raw)
}

// skipNested returns the index after the object or array opening at s[start].
func skipNested(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '"':
			_, next, closed := scanString(s, i)
			if !closed {
				return len(s)
			}
			i = next - 1
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(s)
}

// stringItems keeps the string entries of a JSON array and drops the rest.
func stringItems(raw json.RawMessage) []string {
	var values []interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	var out []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Summarizer asks the generator for a structured summary of a transcript.
type Summarizer struct {
	generator ai.Generator
}

func NewSummarizer(generator ai.Generator) *Summarizer {
	return &Summarizer{generator: generator}
}

// Summarize never fails the caller: on any error it returns the fallback
// result together with the reason.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (SummaryResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return fallbackResult(), fmt.Errorf("no transcript content found")
	}

	text, err := s.generator.Generate(ctx, fmt.Sprintf(summaryPrompt, transcript), summaryOptions)
	if err != nil {
		return fallbackResult(), fmt.Errorf("generate summary: %w", err)
	}

	result, ok := ParseSummary(text)
	if !ok {
		return result, fmt.Errorf("unparseable summary response")
	}
	return result, nil
}
