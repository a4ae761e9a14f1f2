package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
)

var (
	//go:embed template/intake.txt
	intakeRaw string

	//go:embed template/estimator.txt
	estimatorRaw string

	//go:embed template/communication.txt
	communicationRaw string

	//go:embed template/scheduling.txt
	schedulingRaw string

	//go:embed template/grounded_answer.txt
	groundedRaw string
)

// PromptSet holds loaded prompt content. Prompts are rendered as FString
// templates, so they must not contain curly braces.
type PromptSet struct {
	Intake        string
	Estimator     string
	Communication string
	Scheduling    string
	Grounded      string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Intake:        strings.TrimSpace(intakeRaw),
		Estimator:     strings.TrimSpace(estimatorRaw),
		Communication: strings.TrimSpace(communicationRaw),
		Scheduling:    strings.TrimSpace(schedulingRaw),
		Grounded:      strings.TrimSpace(groundedRaw),
	}
}

func (p PromptSet) Validate() error {
	prompts := []struct {
		name string
		body string
	}{
		{"intake", p.Intake},
		{"estimator", p.Estimator},
		{"communication", p.Communication},
		{"scheduling", p.Scheduling},
		{"grounded", p.Grounded},
	}
	for _, pr := range prompts {
		if strings.TrimSpace(pr.body) == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, pr.name)
		}
		if strings.ContainsAny(pr.body, "{}") {
			return fmt.Errorf("%w: %s prompt contains template braces", contractx.ErrPromptMissing, pr.name)
		}
	}
	return nil
}
