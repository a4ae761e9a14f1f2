package tool

import (
	"slices"
	"strings"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
)

// TopicClassifier picks the data topics relevant to a customer question.
type TopicClassifier interface {
	Classify(question string) []contractx.Topic
}

type topicRule struct {
	topic    contractx.Topic
	keywords []string
}

// KeywordClassifier matches keywords by case-insensitive substring. A question
// that matches nothing gets every topic.
type KeywordClassifier struct {
	rules []topicRule
}

var _ TopicClassifier = (*KeywordClassifier)(nil)

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{rules: []topicRule{
		{contractx.TopicCustomer, []string{"customer", "name", "phone", "email", "contact", "preferred contact"}},
		{contractx.TopicVehicle, []string{"vehicle", "car", "vin", "make", "model", "year", "mileage", "registration", "plate"}},
		{contractx.TopicJobCard, []string{
			"job card", "jobcard", "job", "status", "progress", "stage", "complaint",
			"service", "advisor", "risk", "obd", "fault", "code",
		}},
		{contractx.TopicEstimate, []string{
			"estimate", "cost", "price", "total", "approval", "approved", "rejected", "pending",
			"labor", "parts", "tax", "grand total", "payable", "amount",
		}},
		{contractx.TopicEstimateLineItems, []string{"line item", "line items", "itemized", "breakdown", "parts", "labor"}},
	}}
}

// Classify returns a non-empty, sorted topic set.
func (c *KeywordClassifier) Classify(question string) []contractx.Topic {
	q := strings.ToLower(question)
	set := make(map[contractx.Topic]struct{}, len(contractx.AllTopics))
	for _, rule := range c.rules {
		if containsAny(q, rule.keywords) {
			set[rule.topic] = struct{}{}
		}
	}
	if len(set) == 0 {
		for _, t := range contractx.AllTopics {
			set[t] = struct{}{}
		}
	}
	if _, ok := set[contractx.TopicEstimateLineItems]; ok {
		set[contractx.TopicEstimate] = struct{}{}
	}

	out := make([]contractx.Topic, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func hasTopic(topics []contractx.Topic, t contractx.Topic) bool {
	return slices.Contains(topics, t)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
