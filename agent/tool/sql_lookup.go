package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

type SQLLookupRequest struct {
	VehicleID  string   `json:"vehicle_id,omitempty"`
	CustomerID string   `json:"customer_id,omitempty"`
	PartCodes  []string `json:"part_codes,omitempty"`
	FaultCodes []string `json:"fault_codes,omitempty"`
}

// SQLLookupTool resolves the grounding records for intake and estimation.
// Unknown identifiers are dropped from the result, never reported as errors.
type SQLLookupTool struct {
	gateway contractx.KnowledgeGateway
}

func NewSQLLookupTool(gateway contractx.KnowledgeGateway) *SQLLookupTool {
	return &SQLLookupTool{gateway: gateway}
}

func (t *SQLLookupTool) Run(ctx context.Context, req SQLLookupRequest) (contractx.LookupResult, error) {
	var out contractx.LookupResult
	codes := domain.NormalizeFaultCodes(req.FaultCodes)

	p := pool.New().WithErrors().WithContext(ctx)
	if id := strings.TrimSpace(req.VehicleID); id != "" {
		p.Go(func(ctx context.Context) error {
			v, err := t.gateway.GetVehicle(ctx, id)
			out.Vehicle = v
			return err
		})
	}
	if id := strings.TrimSpace(req.CustomerID); id != "" {
		p.Go(func(ctx context.Context) error {
			c, err := t.gateway.GetCustomer(ctx, id)
			out.Customer = c
			return err
		})
	}
	if len(req.PartCodes) > 0 {
		p.Go(func(ctx context.Context) error {
			parts, err := t.gateway.GetParts(ctx, req.PartCodes)
			out.Parts = parts
			return err
		})
	}
	if len(codes) > 0 {
		p.Go(func(ctx context.Context) error {
			faults, err := t.gateway.GetFaultCodes(ctx, codes)
			if err != nil {
				return err
			}
			out.FaultCodes = faults

			var laborIDs []string
			for _, f := range faults {
				if f.LaborOperationID != "" {
					laborIDs = append(laborIDs, f.LaborOperationID)
				}
			}
			if len(laborIDs) == 0 {
				return nil
			}
			labor, err := t.gateway.GetLaborOperations(ctx, laborIDs)
			out.Labor = labor
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return contractx.LookupResult{}, fmt.Errorf("%w: sql lookup: %w", contractx.ErrDataRetrieval, err)
	}
	return out, nil
}
