package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

type scheduleDraft struct {
	Agent         string `json:"agent"`
	ETA           string `json:"eta"`
	ScheduleNotes string `json:"schedule_notes"`
}

// schedulingSpecialist estimates completion time. It has no tools; the
// labor hours of the current estimate are read up front.
type schedulingSpecialist struct {
	runner  *structuredRunner[scheduleDraft]
	gateway contractx.KnowledgeGateway
}

func newSchedulingSpecialist(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	gateway contractx.KnowledgeGateway,
) (*schedulingSpecialist, error) {
	runner, err := newStructuredRunner[scheduleDraft](ctx, chatModel, systemPrompt, "scheduling.structured_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile scheduling graph: %v", contractx.ErrModelInvoke, err)
	}
	return &schedulingSpecialist{runner: runner, gateway: gateway}, nil
}

func (s *schedulingSpecialist) Run(ctx context.Context, req contractx.Request) (json.RawMessage, error) {
	jobCardID := firstNonEmpty(req.JobCardID, jobCardIDOf(req.JobCard))

	var card *domain.JobCard
	var hours float64
	if jobCardID != "" {
		var err error
		card, err = s.gateway.GetJobCard(ctx, jobCardID)
		if err != nil {
			return nil, fmt.Errorf("%w: job card %s: %w", contractx.ErrDataRetrieval, jobCardID, err)
		}
		hours, err = s.laborHours(ctx, jobCardID)
		if err != nil {
			return nil, err
		}
	}

	draft, err := s.runner.Invoke(ctx, map[string]any{
		"request":     req,
		"job_card":    card,
		"labor_hours": hours,
	})
	if err != nil {
		return nil, err
	}
	eta := strings.TrimSpace(draft.ETA)
	if eta == "" {
		return nil, fmt.Errorf("%w: eta is empty", contractx.ErrSchemaViolation)
	}

	return json.Marshal(contractx.ScheduleResult{
		Agent:         contractx.AgentNameScheduling,
		JobCardID:     jobCardID,
		ETA:           eta,
		ScheduleNotes: strings.TrimSpace(draft.ScheduleNotes),
	})
}

// laborHours sums estimated hours over the labor lines of the job's estimate.
func (s *schedulingSpecialist) laborHours(ctx context.Context, jobCardID string) (float64, error) {
	est, err := s.gateway.GetEstimateForJob(ctx, jobCardID)
	if err != nil {
		return 0, fmt.Errorf("%w: estimate for %s: %w", contractx.ErrDataRetrieval, jobCardID, err)
	}
	if est == nil {
		return 0, nil
	}
	items, err := s.gateway.GetEstimateLineItems(ctx, est.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: line items for %s: %w", contractx.ErrDataRetrieval, est.ID, err)
	}

	qty := map[string]float64{}
	var ids []string
	for _, item := range items {
		if item.Type != domain.LineItemLabor {
			continue
		}
		if _, ok := qty[item.ReferenceID]; !ok {
			ids = append(ids, item.ReferenceID)
		}
		qty[item.ReferenceID] += item.Quantity
	}
	if len(ids) == 0 {
		return 0, nil
	}

	ops, err := s.gateway.GetLaborOperations(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("%w: labor operations: %w", contractx.ErrDataRetrieval, err)
	}
	var hours float64
	for _, op := range ops {
		hours += op.EstimatedHours * qty[op.ID]
	}
	return domain.Round2(hours), nil
}

func jobCardIDOf(card *contractx.JobCardPayload) string {
	if card == nil {
		return ""
	}
	return card.JobCardID
}
