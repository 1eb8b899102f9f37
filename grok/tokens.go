package grok

import (
	"strings"

	"github.com/tiktoken-go/tokenizer/codec"
)

var tokenizer = codec.NewCl100kBase()

// per-message framing overhead of the chat format
const messageOverheadTokens = 4

// ApproxTokens estimates the number of tokens in text.
func ApproxTokens(text string) int {
	tokens, _, err := tokenizer.Encode(text)
	if err != nil {
		// approximation
		wc := len(strings.Fields(text)) * 4 / 3
		cc := len(text) / 4
		return (wc + cc) / 2
	}
	return len(tokens)
}

// ApproxTokensInMessages estimates the prompt size of a transcript.
func ApproxTokensInMessages(messages []Message) int {
	total := 0
	for _, message := range messages {
		total += messageOverheadTokens + ApproxTokens(message.Content)
	}
	return total
}
