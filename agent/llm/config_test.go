package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
)

func TestOpenRouterForAppliesOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:               " key ",
		Model:                "openai/gpt-4o-mini",
		Temperature:          0.2,
		MaxCompletionToken:   1500,
		EstimatorModel:       "openai/gpt-4o",
		EstimatorTemperature: -1,
		GroundedTemperature:  0,
	}

	est := cfg.OpenRouterFor(contractx.AgentTypeEstimator)
	if est.Model != "openai/gpt-4o" || est.Temperature != 0.2 {
		t.Fatalf("unexpected estimator config: model=%s temp=%v", est.Model, est.Temperature)
	}
	if est.APIKey != "key" || est.MaxCompletionToken == nil || *est.MaxCompletionToken != 1500 {
		t.Fatalf("unexpected shared config: %+v", est)
	}

	grounded := cfg.OpenRouterFor(contractx.AgentTypeGrounded)
	if grounded.Model != "openai/gpt-4o-mini" || grounded.Temperature != 0 {
		t.Fatalf("unexpected grounded config: model=%s temp=%v", grounded.Model, grounded.Temperature)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := (Config{APIKey: "k", Model: "m", ByAzure: true}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for azure without version, got %v", err)
	}
	if err := (Config{APIKey: "k", Model: "m"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
