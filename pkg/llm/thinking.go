package llm

import (
	"regexp"
	"strings"
)

// thinkBlockPattern matches <think>...</think> reasoning blocks emitted by
// reasoning models, including an unterminated trailing block.
var thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?(?:</think>|$)`)

// StripThinking removes reasoning blocks so only the answer text remains.
func StripThinking(response string) string {
	return strings.TrimSpace(thinkBlockPattern.ReplaceAllString(response, ""))
}
