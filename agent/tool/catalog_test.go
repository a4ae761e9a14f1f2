package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/knowledge"
)

func newTestToolbox(t *testing.T) *Toolbox {
	t.Helper()

	box, err := NewToolbox(knowledge.NewFixtureStore(shopFixtures()), &fakeAnswerer{answer: "ok"})
	if err != nil {
		t.Fatalf("NewToolbox() error = %v", err)
	}
	return box
}

func TestInfosForCapability(t *testing.T) {
	t.Parallel()

	infos := InfosFor(contractx.CapabilityCommunication)
	if len(infos) != 3 {
		t.Fatalf("expected 3 tool infos, got %d", len(infos))
	}
	if infos[0].Name != ToolCustomerDB {
		t.Fatalf("unexpected first tool: %s", infos[0].Name)
	}
	if got := InfosFor(contractx.CapabilityScheduling); len(got) != 0 {
		t.Fatalf("scheduling must have no tools, got %d", len(got))
	}
}

func TestToolboxRejectsToolOutsideAllowlist(t *testing.T) {
	t.Parallel()

	box := newTestToolbox(t)
	_, err := box.Execute(context.Background(), contractx.CapabilityEstimation, []contractx.ToolRequest{
		{Tool: ToolSQLLookup, Args: map[string]any{"vehicle_id": "V001"}},
		{Tool: ToolCustomerDB, Args: map[string]any{"customer_id": "C001"}},
	})
	if !errors.Is(err, contractx.ErrToolNotAllowed) {
		t.Fatalf("expected ErrToolNotAllowed, got %v", err)
	}
}

func TestToolboxValidatesArguments(t *testing.T) {
	t.Parallel()

	box := newTestToolbox(t)
	_, err := box.Execute(context.Background(), contractx.CapabilityIntake, []contractx.ToolRequest{
		{Tool: ToolSQLLookup, Args: map[string]any{"vehicle_id": 42}},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestToolboxSQLLookupResolvesLaborFromFaults(t *testing.T) {
	t.Parallel()

	box := newTestToolbox(t)
	results, err := box.Execute(context.Background(), contractx.CapabilityEstimation, []contractx.ToolRequest{{
		ID:   "call-1",
		Tool: ToolSQLLookup,
		Args: map[string]any{
			"vehicle_id":  "V001",
			"customer_id": "C404",
			"fault_codes": []string{"P0301 - Cylinder 1 Misfire", "P9999"},
		},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "call-1" {
		t.Fatalf("unexpected results: %+v", results)
	}
	lookup, ok := results[0].Result.(contractx.LookupResult)
	if !ok {
		t.Fatalf("unexpected result type: %T", results[0].Result)
	}
	if lookup.Vehicle == nil || lookup.Customer != nil {
		t.Fatalf("unexpected records: %+v", lookup)
	}
	if len(lookup.FaultCodes) != 1 || len(lookup.Labor) != 1 || lookup.Labor[0].ID != "L001" {
		t.Fatalf("expected resolved fault and labor, got %+v", lookup)
	}
}

func TestRequestsFromCallsRejectsBadJSON(t *testing.T) {
	t.Parallel()

	_, err := RequestsFromCalls([]schema.ToolCall{{
		ID:       "c1",
		Function: schema.FunctionCall{Name: ToolSQLLookup, Arguments: "{not json"},
	}})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestToolboxJobStatusHidesForeignCards(t *testing.T) {
	t.Parallel()

	box := newTestToolbox(t)
	results, err := box.Execute(context.Background(), contractx.CapabilityCommunication, []contractx.ToolRequest{
		{Tool: ToolJobStatus, Args: map[string]any{"customer_id": "C001", "job_card_id": "J002"}},
		{Tool: ToolJobStatus, Args: map[string]any{"customer_id": "C001", "job_card_id": "J003"}},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	foreign := results[0].Result.(contractx.JobStatusResult)
	own := results[1].Result.(contractx.JobStatusResult)
	if foreign.Status != "" || own.Status != "in_progress" {
		t.Fatalf("unexpected statuses: foreign=%q own=%q", foreign.Status, own.Status)
	}
}
