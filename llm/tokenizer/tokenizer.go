package tokenizer

import "errors"

// Tokenizer counts tokens for one model family.
type Tokenizer interface {
	// CountTokens returns the token count of text.
	CountTokens(text string) (int, error)

	// CountMessages returns the total for a message list, including the
	// per-message framing overhead.
	CountMessages(messages []Message) (int, error)

	// MaxTokens returns the model's context window.
	MaxTokens() int

	// Name identifies the tokenizer in logs.
	Name() string
}

// Message is the minimal view of a chat message needed for counting.
type Message struct {
	Role    string
	Content string
}

// Per-message and end-of-conversation framing, per the OpenAI chat format.
const (
	messageOverhead      = 4
	conversationOverhead = 3
)

// ErrBudgetTooSmall means even the fixed prefix plus the newest message do
// not fit.
var ErrBudgetTooSmall = errors.New("token budget too small for prompt")

// ForModel returns a tiktoken tokenizer for model.
func ForModel(model string) Tokenizer {
	return NewTiktokenTokenizer(model)
}

// Fit returns the smallest index start such that fixed + history[start:]
// fits in budget tokens. The newest history entry is always kept; if it
// does not fit, start is len(history)-1 and ErrBudgetTooSmall is returned.
// A non-positive budget keeps everything.
func Fit(t Tokenizer, fixed, history []Message, budget int) (int, error) {
	if budget <= 0 || len(history) == 0 {
		return 0, nil
	}

	base, err := t.CountMessages(fixed)
	if err != nil {
		return 0, err
	}
	// CountMessages includes the conversation overhead once; per-message
	// costs below are added on top of it.
	total := base
	if len(fixed) == 0 {
		total = conversationOverhead
	}

	for i := len(history) - 1; i >= 0; i-- {
		n, err := t.CountTokens(history[i].Content)
		if err != nil {
			return 0, err
		}
		n += messageOverhead
		if total+n > budget {
			if i == len(history)-1 {
				return i, ErrBudgetTooSmall
			}
			return i + 1, nil
		}
		total += n
	}
	return 0, nil
}
