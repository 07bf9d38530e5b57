package conversation

import "strings"

// TerminationPolicy decides, after a turn, whether the session should end.
// The turn cap is enforced separately and applies to every policy.
type TerminationPolicy interface {
	ShouldTerminate(transcript []Message) bool
}

// PolicyFunc adapts a function to TerminationPolicy.
type PolicyFunc func(transcript []Message) bool

func (f PolicyFunc) ShouldTerminate(transcript []Message) bool { return f(transcript) }

// DefaultApprovalKeyword ends a conversation once the critic approves.
const DefaultApprovalKeyword = "approved"

// KeywordPolicy fires when the latest message contains any keyword,
// ignoring case.
type KeywordPolicy struct {
	keywords []string
}

// NewKeywordPolicy creates a policy for keywords; with none given it uses
// DefaultApprovalKeyword. Blank keywords are ignored.
func NewKeywordPolicy(keywords ...string) *KeywordPolicy {
	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		kws = []string{DefaultApprovalKeyword}
	}
	return &KeywordPolicy{keywords: kws}
}

// ApprovalPolicy returns the default keyword policy.
func ApprovalPolicy() *KeywordPolicy { return NewKeywordPolicy() }

func (p *KeywordPolicy) ShouldTerminate(transcript []Message) bool {
	if len(transcript) == 0 {
		return false
	}
	content := strings.ToLower(transcript[len(transcript)-1].Content)
	for _, k := range p.keywords {
		if strings.Contains(content, k) {
			return true
		}
	}
	return false
}

// Keywords returns the normalized keywords.
func (p *KeywordPolicy) Keywords() []string {
	return append([]string(nil), p.keywords...)
}

// NeverPolicy never fires; only the turn cap ends the session.
type NeverPolicy struct{}

func (NeverPolicy) ShouldTerminate([]Message) bool { return false }

// AnyOf fires when any of policies fires. Nil members are skipped.
func AnyOf(policies ...TerminationPolicy) TerminationPolicy {
	return PolicyFunc(func(transcript []Message) bool {
		for _, p := range policies {
			if p != nil && p.ShouldTerminate(transcript) {
				return true
			}
		}
		return false
	})
}
