package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	openrouterx "github.com/tanpawarit/autoshop-agent/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	ByAzure            bool          `envconfig:"BY_AZURE" split_words:"true" default:"false"`
	APIVersion         string        `envconfig:"API_VERSION" split_words:"true" default:"2024-10-21"`
	ProbeOnStart       bool          `envconfig:"PROBE_ON_START" split_words:"true" default:"false"`

	IntakeModel              string  `envconfig:"INTAKE_MODEL" split_words:"true"`
	EstimatorModel           string  `envconfig:"ESTIMATOR_MODEL" split_words:"true"`
	CommunicationModel       string  `envconfig:"COMMUNICATION_MODEL" split_words:"true"`
	SchedulingModel          string  `envconfig:"SCHEDULING_MODEL" split_words:"true"`
	GroundedModel            string  `envconfig:"GROUNDED_MODEL" split_words:"true"`
	IntakeTemperature        float32 `envconfig:"INTAKE_TEMPERATURE" split_words:"true" default:"-1"`
	EstimatorTemperature     float32 `envconfig:"ESTIMATOR_TEMPERATURE" split_words:"true" default:"-1"`
	CommunicationTemperature float32 `envconfig:"COMMUNICATION_TEMPERATURE" split_words:"true" default:"-1"`
	SchedulingTemperature    float32 `envconfig:"SCHEDULING_TEMPERATURE" split_words:"true" default:"-1"`
	GroundedTemperature      float32 `envconfig:"GROUNDED_TEMPERATURE" split_words:"true" default:"0"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.ByAzure && strings.TrimSpace(c.APIVersion) == "" {
		return fmt.Errorf("%w: azure api version is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(m string, t float32) {
		if v := strings.TrimSpace(m); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}

	switch agentType {
	case contractx.AgentTypeIntake:
		override(c.IntakeModel, c.IntakeTemperature)
	case contractx.AgentTypeEstimator:
		override(c.EstimatorModel, c.EstimatorTemperature)
	case contractx.AgentTypeCommunication:
		override(c.CommunicationModel, c.CommunicationTemperature)
	case contractx.AgentTypeScheduling:
		override(c.SchedulingModel, c.SchedulingTemperature)
	case contractx.AgentTypeGrounded:
		override(c.GroundedModel, c.GroundedTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
		ByAzure:            c.ByAzure,
		APIVersion:         strings.TrimSpace(c.APIVersion),
	}
}
