package prompt

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/ledgerline/ledgerchat/server/relay"
)

// TokenCounter estimates prompt sizes for logging and metrics. Counts are
// informational; the relay never rejects a request over them.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for the given model. When no encoding is
// known for the model (or the encoding data cannot be loaded), the counter
// falls back to a bytes/4 heuristic instead of failing.
func NewTokenCounter(model string) *TokenCounter {
	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{encoder: encoder}
}

// Count returns the number of tokens in a text.
func (tc *TokenCounter) Count(text string) int {
	if tc.encoder == nil {
		return len(text) / 4
	}
	return len(tc.encoder.Encode(text, nil, nil))
}

// CountMessages estimates tokens for a message sequence, including the
// per-message formatting overhead the chat format adds (~4 tokens per
// message plus 3 for reply priming).
func (tc *TokenCounter) CountMessages(messages []relay.Message) int {
	total := 0
	for _, msg := range messages {
		total += tc.Count(msg.Content) + 4
	}
	return total + 3
}
