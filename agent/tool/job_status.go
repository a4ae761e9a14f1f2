package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
)

type JobStatusRequest struct {
	CustomerID string `json:"customer_id"`
	JobCardID  string `json:"job_card_id"`
}

// JobStatusTool reports the status of a job card owned by the customer. A
// card owned by someone else reads as unknown.
type JobStatusTool struct {
	gateway contractx.KnowledgeGateway
}

func NewJobStatusTool(gateway contractx.KnowledgeGateway) *JobStatusTool {
	return &JobStatusTool{gateway: gateway}
}

func (t *JobStatusTool) Run(ctx context.Context, req JobStatusRequest) (contractx.JobStatusResult, error) {
	out := contractx.JobStatusResult{JobCardID: req.JobCardID}
	if strings.TrimSpace(req.JobCardID) == "" {
		return out, nil
	}
	card, err := t.gateway.GetJobCard(ctx, req.JobCardID)
	if err != nil {
		return contractx.JobStatusResult{}, fmt.Errorf("%w: job card status: %w", contractx.ErrDataRetrieval, err)
	}
	if card == nil || !OwnsJobCard(card, req.CustomerID) {
		return out, nil
	}
	out.Status = card.Status
	return out, nil
}
