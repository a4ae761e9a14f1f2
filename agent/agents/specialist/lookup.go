package specialist

import (
	"context"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
	toolx "github.com/tanpawarit/autoshop-agent/agent/tool"
)

// lookupArgs builds sql_lookup_tool arguments, leaving out empty values.
func lookupArgs(vehicleID, customerID string, partCodes, faultCodes []string) map[string]any {
	args := map[string]any{}
	if vehicleID != "" {
		args["vehicle_id"] = vehicleID
	}
	if customerID != "" {
		args["customer_id"] = customerID
	}
	if len(partCodes) > 0 {
		args["part_codes"] = partCodes
	}
	if len(faultCodes) > 0 {
		args["fault_codes"] = faultCodes
	}
	return args
}

func runLookup(
	ctx context.Context,
	tools contractx.ToolGateway,
	capability contractx.Capability,
	args map[string]any,
) (contractx.LookupResult, error) {
	results, err := tools.Execute(ctx, capability, []contractx.ToolRequest{{
		ID:   "lookup",
		Tool: toolx.ToolSQLLookup,
		Args: args,
	}})
	if err != nil {
		return contractx.LookupResult{}, err
	}
	return mergeLookups(results), nil
}

// mergeLookups folds every sql_lookup_tool result into one bag. The first
// vehicle and customer win; lists are deduped by id.
func mergeLookups(results []contractx.ToolResult) contractx.LookupResult {
	var out contractx.LookupResult
	parts := map[string]struct{}{}
	faults := map[string]struct{}{}
	labor := map[string]struct{}{}

	for _, res := range results {
		if res.Tool != toolx.ToolSQLLookup {
			continue
		}
		lr, ok := res.Result.(contractx.LookupResult)
		if !ok {
			continue
		}
		if out.Vehicle == nil {
			out.Vehicle = lr.Vehicle
		}
		if out.Customer == nil {
			out.Customer = lr.Customer
		}
		for _, p := range lr.Parts {
			if _, seen := parts[p.ID]; !seen {
				parts[p.ID] = struct{}{}
				out.Parts = append(out.Parts, p)
			}
		}
		for _, f := range lr.FaultCodes {
			if _, seen := faults[f.Code]; !seen {
				faults[f.Code] = struct{}{}
				out.FaultCodes = append(out.FaultCodes, f)
			}
		}
		for _, l := range lr.Labor {
			if _, seen := labor[l.ID]; !seen {
				labor[l.ID] = struct{}{}
				out.Labor = append(out.Labor, l)
			}
		}
	}
	return out
}

func laborByID(ops []domain.LaborOperation) map[string]domain.LaborOperation {
	out := make(map[string]domain.LaborOperation, len(ops))
	for _, op := range ops {
		out[op.ID] = op
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
