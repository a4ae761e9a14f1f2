package tool

import (
	"regexp"
	"strings"

	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// Decision is an approval intent read from customer text.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// JobStatus maps a decision to the job card status it commits.
func (d Decision) JobStatus() domain.JobStatus {
	switch d {
	case DecisionApproved:
		return domain.JobApproved
	case DecisionRejected:
		return domain.JobRejected
	default:
		return ""
	}
}

// ApprovalExtractor classifies approval intent. It must not touch any store.
type ApprovalExtractor interface {
	Extract(text string) Decision
}

type KeywordApprovalExtractor struct {
	approve map[string]struct{}
	reject  map[string]struct{}
}

var _ ApprovalExtractor = (*KeywordApprovalExtractor)(nil)

var (
	wordPattern = regexp.MustCompile(`[a-z]+(?:'[a-z]+)?`)

	negations = wordSet("not", "don't", "dont", "never", "won't", "wont", "can't", "cant", "cannot", "didn't", "didnt", "isn't")
)

// negationWindow is how many preceding words may negate a decision word.
const negationWindow = 3

func NewKeywordApprovalExtractor() *KeywordApprovalExtractor {
	return &KeywordApprovalExtractor{
		approve: wordSet("approve", "approved", "accept", "accepted"),
		reject:  wordSet("reject", "rejected", "decline", "declined"),
	}
}

// Extract returns a decision only when exactly one side is mentioned, as a
// whole word and never negated. A negated mention makes the text ambiguous.
func (e *KeywordApprovalExtractor) Extract(text string) Decision {
	words := wordPattern.FindAllString(strings.ReplaceAll(strings.ToLower(text), "’", "'"), -1)

	var approve, reject bool
	for i, w := range words {
		_, isApprove := e.approve[w]
		_, isReject := e.reject[w]
		if !isApprove && !isReject {
			continue
		}
		if negated(words, i) {
			return DecisionNone
		}
		approve = approve || isApprove
		reject = reject || isReject
	}

	switch {
	case approve && !reject:
		return DecisionApproved
	case reject && !approve:
		return DecisionRejected
	default:
		return DecisionNone
	}
}

func negated(words []string, i int) bool {
	for j := max(0, i-negationWindow); j < i; j++ {
		if _, ok := negations[words[j]]; ok {
			return true
		}
	}
	return false
}

func wordSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
