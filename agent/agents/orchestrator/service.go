package orchestrator

import (
	"context"
	"errors"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
)

// Dispatcher routes one canonical request to one capability.
type Dispatcher interface {
	Dispatch(ctx context.Context, req contractx.Request) (contractx.Result, error)
}

// Service is the single entry point used by transports.
type Service struct {
	router    Dispatcher
	estimates *EstimateService
}

func New(router Dispatcher, estimates *EstimateService) (*Service, error) {
	if router == nil {
		return nil, errors.New("router is required")
	}
	if estimates == nil {
		return nil, errors.New("estimate service is required")
	}
	return &Service{router: router, estimates: estimates}, nil
}

// Execute builds the canonical request and dispatches it.
func (s *Service) Execute(ctx context.Context, in contractx.MasterRequest) (contractx.Result, error) {
	req, err := BuildRequest(in)
	if err != nil {
		return contractx.Result{}, err
	}
	return s.router.Dispatch(ctx, req)
}

func (s *Service) Estimates() *EstimateService {
	return s.estimates
}
