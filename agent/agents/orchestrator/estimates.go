package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// EstimateService applies advisor-driven estimate lifecycle actions.
type EstimateService struct {
	store contractx.EstimateWriter
}

func NewEstimateService(store contractx.EstimateWriter) (*EstimateService, error) {
	if store == nil {
		return nil, errors.New("estimate store is required")
	}
	return &EstimateService{store: store}, nil
}

func (s *EstimateService) ApproveEstimate(ctx context.Context, id string) (*domain.Estimate, error) {
	return s.transition(ctx, id, domain.EstimateApproved)
}

func (s *EstimateService) RejectEstimate(ctx context.Context, id string) (*domain.Estimate, error) {
	return s.transition(ctx, id, domain.EstimateRejected)
}

func (s *EstimateService) ReviseEstimate(ctx context.Context, id string) (*domain.Estimate, error) {
	return s.transition(ctx, id, domain.EstimateRevised)
}

func (s *EstimateService) transition(ctx context.Context, id string, to domain.EstimateStatus) (*domain.Estimate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: estimate id is required", contractx.ErrValidation)
	}

	est, err := s.store.GetEstimate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: estimate %s: %w", contractx.ErrDataRetrieval, id, err)
	}
	if est == nil {
		return nil, fmt.Errorf("%w: estimate %s", contractx.ErrNotFound, id)
	}

	from := est.Status
	if err := domain.TransitionEstimate(from, to); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEstimateStatus(ctx, id, to); err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update estimate %s: %w", contractx.ErrDataRetrieval, id, err)
	}

	log.Info().
		Str("estimate_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("estimate status changed")

	est.Status = to
	return est, nil
}
