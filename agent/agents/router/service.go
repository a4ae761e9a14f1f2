package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	logx "github.com/tanpawarit/autoshop-agent/pkg/logger"
	metricsx "github.com/tanpawarit/autoshop-agent/pkg/metrics"
)

// Router is a stateless single-shot dispatcher: every request reaches
// exactly one specialist and its output is returned unchanged.
type Router struct {
	selector *Selector
	runner   compose.Runnable[*dispatchState, contractx.Result]
}

func NewRouter(ctx context.Context, registry contractx.Registry, vehicles RegistrationLookup) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: specialist registry is required", contractx.ErrValidation)
	}
	verifier, err := NewOutputVerifier()
	if err != nil {
		return nil, err
	}
	runner, err := compileDispatchGraph(ctx, map[contractx.Capability]contractx.Specialist{
		contractx.CapabilityIntake:        registry.Intake(),
		contractx.CapabilityEstimation:    registry.Estimator(),
		contractx.CapabilityCommunication: registry.Communication(),
		contractx.CapabilityScheduling:    registry.Scheduling(),
	}, verifier)
	if err != nil {
		return nil, err
	}
	return &Router{selector: NewSelector(vehicles), runner: runner}, nil
}

// Dispatch routes req to one capability. Failures are never retried and no
// partial output is returned.
func (r *Router) Dispatch(ctx context.Context, req contractx.Request) (contractx.Result, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		metricsx.RecordDispatch("none", "", err, time.Since(start))
		return contractx.Result{}, err
	}

	route, err := r.selector.Select(ctx, req)
	if err != nil {
		metricsx.RecordDispatch("none", "", err, time.Since(start))
		return contractx.Result{}, err
	}

	out, err := r.runner.Invoke(ctx, &dispatchState{Req: req, Route: route})
	elapsed := time.Since(start)
	metricsx.RecordDispatch(string(route.Capability), route.Rule, err, elapsed)

	logger := logx.Dispatch(string(route.Capability), route.Rule)
	event := logger.Info()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.
		Str("action", req.Action).
		Dur("latency", elapsed).
		Bool("ok", err == nil).
		Msg("request dispatched")

	if err != nil {
		return contractx.Result{}, err
	}
	return out, nil
}

func validateRequest(req contractx.Request) error {
	fields := []string{
		req.Input, req.VehicleID, req.CustomerID, req.Complaint, req.ReportText,
		req.JobCardID, req.Question, req.Context,
	}
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return nil
		}
	}
	if req.JobCard != nil {
		return nil
	}
	return fmt.Errorf("%w: request has no content", contractx.ErrValidation)
}
