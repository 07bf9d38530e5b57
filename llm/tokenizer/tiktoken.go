package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer counts tokens for OpenAI models with tiktoken.
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

type encodingInfo struct {
	encoding  string
	maxTokens int
}

// Longer prefixes are listed first so "gpt-4o" wins over "gpt-4".
var modelEncodings = []struct {
	prefix string
	info   encodingInfo
}{
	{"gpt-4.1", encodingInfo{"o200k_base", 1047576}},
	{"gpt-4o", encodingInfo{"o200k_base", 128000}},
	{"o1", encodingInfo{"o200k_base", 200000}},
	{"o3", encodingInfo{"o200k_base", 200000}},
	{"gpt-4-turbo", encodingInfo{"cl100k_base", 128000}},
	{"gpt-4", encodingInfo{"cl100k_base", 8192}},
	{"gpt-35-turbo", encodingInfo{"cl100k_base", 16385}}, // Azure spelling
	{"gpt-3.5-turbo", encodingInfo{"cl100k_base", 16385}},
}

// NewTiktokenTokenizer resolves model to an encoding by prefix. Unknown
// models (such as custom Azure deployment names) use cl100k_base.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	info := encodingInfo{encoding: "cl100k_base", maxTokens: 8192}
	lower := strings.ToLower(model)
	for _, m := range modelEncodings {
		if strings.HasPrefix(lower, m.prefix) {
			info = m.info
			break
		}
	}
	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}
}

// init loads the encoding on first use; tiktoken may download its BPE file.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := conversationOverhead
	for _, msg := range messages {
		total += messageOverhead
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(msg.Role, nil, nil))
	}
	return total, nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.maxTokens }

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// Encoding returns the resolved tiktoken encoding name.
func (t *TiktokenTokenizer) Encoding() string { return t.encoding }
