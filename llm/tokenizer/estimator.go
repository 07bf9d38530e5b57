package tokenizer

import "unicode/utf8"

// EstimatorTokenizer approximates token counts from character classes:
// about four ASCII characters or one and a half CJK characters per token.
// It needs no encoding data, which makes it the offline fallback.
type EstimatorTokenizer struct {
	maxTokens int
}

// NewEstimatorTokenizer creates an estimator; maxTokens <= 0 means 4096.
func NewEstimatorTokenizer(maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &EstimatorTokenizer{maxTokens: maxTokens}
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}

	n := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if n == 0 {
		n = 1
	}
	return n, nil
}

func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := conversationOverhead
	for _, msg := range messages {
		n, _ := e.CountTokens(msg.Content)
		total += n + messageOverhead
	}
	return total, nil
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // unified ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // extension B
		(r >= 0xF900 && r <= 0xFAFF) || // compatibility ideographs
		(r >= 0x3000 && r <= 0x303F) || // symbols and punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // half/full width forms
}
