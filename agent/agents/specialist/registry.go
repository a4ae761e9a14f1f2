package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	llmx "github.com/tanpawarit/autoshop-agent/agent/llm"
	promptx "github.com/tanpawarit/autoshop-agent/agent/prompt"
	toolx "github.com/tanpawarit/autoshop-agent/agent/tool"
)

// Dependencies are the collaborators every specialist shares.
type Dependencies struct {
	Store    contractx.KnowledgeStore
	Notifier contractx.Notifier
	Currency string
	TaxRate  float64
}

// Models holds one chat model per agent type.
type Models struct {
	Intake        einomodel.ToolCallingChatModel
	Estimator     einomodel.ToolCallingChatModel
	Communication einomodel.ToolCallingChatModel
	Scheduling    einomodel.ToolCallingChatModel
	Grounded      einomodel.ToolCallingChatModel
}

type registryImpl struct {
	intake        contractx.Specialist
	estimator     contractx.Specialist
	communication contractx.Specialist
	scheduling    contractx.Specialist
}

func (r *registryImpl) Intake() contractx.Specialist {
	return r.intake
}

func (r *registryImpl) Estimator() contractx.Specialist {
	return r.estimator
}

func (r *registryImpl) Communication() contractx.Specialist {
	return r.communication
}

func (r *registryImpl) Scheduling() contractx.Specialist {
	return r.scheduling
}

func NewRegistry(ctx context.Context, cfg llmx.Config, deps Dependencies) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	build := func(agentType contractx.AgentType) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(agentType)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agentType, err)
		}
		return m, nil
	}

	var models Models
	var err error
	if models.Intake, err = build(contractx.AgentTypeIntake); err != nil {
		return nil, err
	}
	if models.Estimator, err = build(contractx.AgentTypeEstimator); err != nil {
		return nil, err
	}
	if models.Communication, err = build(contractx.AgentTypeCommunication); err != nil {
		return nil, err
	}
	if models.Scheduling, err = build(contractx.AgentTypeScheduling); err != nil {
		return nil, err
	}
	if models.Grounded, err = build(contractx.AgentTypeGrounded); err != nil {
		return nil, err
	}

	return NewRegistryWithModels(ctx, models, promptx.LoadPromptSet(), deps)
}

// NewRegistryWithModels wires specialists around already constructed models.
func NewRegistryWithModels(
	ctx context.Context,
	models Models,
	prompts promptx.PromptSet,
	deps Dependencies,
) (contractx.Registry, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: knowledge store is required", contractx.ErrValidation)
	}
	if err := prompts.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(deps.Currency) == "" {
		deps.Currency = "INR"
	}

	grounded, err := NewGroundedAnswerer(ctx, models.Grounded, prompts.Grounded)
	if err != nil {
		return nil, err
	}
	toolbox, err := toolx.NewToolbox(deps.Store, grounded)
	if err != nil {
		return nil, err
	}

	intake, err := newIntakeSpecialist(ctx, models.Intake, prompts.Intake, toolbox, deps.Store)
	if err != nil {
		return nil, err
	}
	estimator, err := newEstimatorSpecialist(ctx, models.Estimator, prompts.Estimator, toolbox, deps.Store, deps.Currency, deps.TaxRate)
	if err != nil {
		return nil, err
	}
	communication, err := newCommunicationSpecialist(ctx, models.Communication, prompts.Communication, toolbox, deps.Notifier)
	if err != nil {
		return nil, err
	}
	scheduling, err := newSchedulingSpecialist(ctx, models.Scheduling, prompts.Scheduling, deps.Store)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		intake:        intake,
		estimator:     estimator,
		communication: communication,
		scheduling:    scheduling,
	}, nil
}
