package llm

import (
	"regexp"
	"strings"
)

// thinkPattern matches reasoning blocks some models emit before the answer.
// Tag case varies across models.
var thinkPattern = regexp.MustCompile(`(?is)<think>.*?</think>`)

// StripReasoning removes <think>...</think> blocks and trims whitespace.
// Reasoning models interleave these with the actual answer; downstream
// parsers only want the answer.
func StripReasoning(s string) string {
	return strings.TrimSpace(thinkPattern.ReplaceAllString(s, ""))
}
