package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	specialistx "github.com/tanpawarit/autoshop-agent/agent/agents/specialist"
	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
	"github.com/tanpawarit/autoshop-agent/agent/knowledge"
	promptx "github.com/tanpawarit/autoshop-agent/agent/prompt"
)

const (
	intakeOutput        = `{"agent":"intake_agent","complaint":"brake noise","obd_codes":[],"service_type":"repair","tasks":["Inspect brake pads"]}`
	estimateOutput      = `{"agent":"estimator_agent","currency":"INR","status":"pending_approval","line_items":[{"type":"labor","reference_id":"L001","name":"Ignition diagnosis","related_fault":"P0301","resolves_task":"Diagnose misfire","quantity":1,"unit_price":1200,"total":1200}],"parts_total":0,"labor_total":1200,"tax":216,"grand_total":1416}`
	communicationOutput = `{"agent":"communication_agent","message":"Your car is ready.","tone":"professional"}`
	scheduleOutput      = `{"agent":"eta_agent","eta":"tomorrow 5 PM"}`
)

type fakeSpecialist struct {
	out   string
	err   error
	calls int
	last  contractx.Request
}

func (f *fakeSpecialist) Run(_ context.Context, req contractx.Request) (json.RawMessage, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.out), nil
}

type fakeRegistry struct {
	intake, estimator, communication, scheduling *fakeSpecialist
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		intake:        &fakeSpecialist{out: intakeOutput},
		estimator:     &fakeSpecialist{out: estimateOutput},
		communication: &fakeSpecialist{out: communicationOutput},
		scheduling:    &fakeSpecialist{out: scheduleOutput},
	}
}

func (r *fakeRegistry) Intake() contractx.Specialist        { return r.intake }
func (r *fakeRegistry) Estimator() contractx.Specialist     { return r.estimator }
func (r *fakeRegistry) Communication() contractx.Specialist { return r.communication }
func (r *fakeRegistry) Scheduling() contractx.Specialist    { return r.scheduling }

func (r *fakeRegistry) totalCalls() int {
	return r.intake.calls + r.estimator.calls + r.communication.calls + r.scheduling.calls
}

func newTestRouter(t *testing.T, reg contractx.Registry) *Router {
	t.Helper()

	store := knowledge.NewFixtureStore(knowledge.Fixtures{
		Vehicles: []domain.Vehicle{{ID: "V001", CustomerID: "C001", RegistrationNumber: "KA01AB1234"}},
	})
	r, err := NewRouter(context.Background(), reg, store)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return r
}

func TestDispatchActionIsAuthoritative(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	r := newTestRouter(t, reg)

	res, err := r.Dispatch(context.Background(), contractx.Request{
		Action:    "eta",
		Shape:     contractx.ShapeFields,
		VehicleID: "V001",
		Complaint: "brake noise, how much will the parts cost?",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Capability != contractx.CapabilityScheduling || res.Rule != RuleAction {
		t.Fatalf("unexpected route: %s/%s", res.Capability, res.Rule)
	}
	if reg.totalCalls() != 1 || reg.scheduling.calls != 1 {
		t.Fatalf("expected exactly one scheduling call, got %d", reg.totalCalls())
	}
}

func TestDispatchActionTable(t *testing.T) {
	t.Parallel()

	cases := map[string]contractx.Capability{
		"intake":        contractx.CapabilityIntake,
		"estimator":     contractx.CapabilityEstimation,
		"Estimate":      contractx.CapabilityEstimation,
		"communication": contractx.CapabilityCommunication,
		"chat":          contractx.CapabilityCommunication,
		"eta":           contractx.CapabilityScheduling,
	}
	for action, want := range cases {
		got, err := CapabilityForAction(action)
		if err != nil {
			t.Fatalf("CapabilityForAction(%q) error = %v", action, err)
		}
		if got != want {
			t.Fatalf("CapabilityForAction(%q) = %s, want %s", action, got, want)
		}
	}
}

func TestDispatchUnknownActionIsValidation(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	r := newTestRouter(t, reg)

	_, err := r.Dispatch(context.Background(), contractx.Request{Action: "refund", Input: "refund me"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if reg.totalCalls() != 0 {
		t.Fatalf("no specialist may run on validation failure, got %d calls", reg.totalCalls())
	}
}

func TestDispatchEmptyRequestIsValidation(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	r := newTestRouter(t, reg)

	_, err := r.Dispatch(context.Background(), contractx.Request{Shape: contractx.ShapeFreeText, Input: "   "})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if reg.totalCalls() != 0 {
		t.Fatalf("unexpected specialist calls: %d", reg.totalCalls())
	}
}

func TestSelectHeuristics(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newFakeRegistry())
	cases := []struct {
		name string
		req  contractx.Request
		want contractx.Capability
		rule string
	}{
		{
			name: "vehicle and complaint beat cost language",
			req:  contractx.Request{VehicleID: "V001", Complaint: "brake noise, what will the parts cost?"},
			want: contractx.CapabilityIntake,
			rule: RuleVehicleIntake,
		},
		{
			name: "vehicle id in free text",
			req:  contractx.Request{Input: "V001 has a misfire, how much to fix?"},
			want: contractx.CapabilityIntake,
			rule: RuleVehicleIntake,
		},
		{
			name: "known registration number",
			req:  contractx.Request{Input: "KA 01 AB 1234 makes a grinding noise"},
			want: contractx.CapabilityIntake,
			rule: RuleVehicleIntake,
		},
		{
			name: "job card with cost context",
			req:  contractx.Request{Input: "How much will J001 cost to fix?"},
			want: contractx.CapabilityEstimation,
			rule: RuleJobCardCost,
		},
		{
			name: "fault code with parts context",
			req:  contractx.Request{Input: "Quote the parts for P0301"},
			want: contractx.CapabilityEstimation,
			rule: RuleJobCardCost,
		},
		{
			name: "scheduling language",
			req:  contractx.Request{Input: "When will my car be ready?"},
			want: contractx.CapabilityScheduling,
			rule: RuleScheduling,
		},
		{
			name: "communication language",
			req:  contractx.Request{Input: "Please send the customer an update"},
			want: contractx.CapabilityCommunication,
			rule: RuleCommunication,
		},
		{
			name: "default",
			req:  contractx.Request{Input: "hello there"},
			want: contractx.CapabilityIntake,
			rule: RuleDefault,
		},
	}

	for _, tc := range cases {
		got, err := r.selector.Select(context.Background(), tc.req)
		if err != nil {
			t.Fatalf("%s: Select() error = %v", tc.name, err)
		}
		if got.Capability != tc.want || got.Rule != tc.rule {
			t.Fatalf("%s: got %s/%s, want %s/%s", tc.name, got.Capability, got.Rule, tc.want, tc.rule)
		}
	}
}

func TestDispatchReturnsOutputVerbatim(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	r := newTestRouter(t, reg)

	res, err := r.Dispatch(context.Background(), contractx.Request{Action: "estimate", JobCardID: "J001"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if string(res.Output) != estimateOutput {
		t.Fatalf("output was reformatted:\n%s", res.Output)
	}
	if reg.estimator.last.JobCardID != "J001" {
		t.Fatalf("request not forwarded verbatim: %+v", reg.estimator.last)
	}
}

func TestDispatchRejectsInvalidOutput(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"syntax":       `{"agent":"communication_agent","message":`,
		"empty":        ``,
		"wrong schema": `{"agent":"communication_agent","message":""}`,
	}
	for name, out := range cases {
		reg := newFakeRegistry()
		reg.communication.out = out
		r := newTestRouter(t, reg)

		res, err := r.Dispatch(context.Background(), contractx.Request{Action: "communication", CustomerID: "C001"})
		if !errors.Is(err, contractx.ErrSchemaViolation) {
			t.Fatalf("%s: expected ErrSchemaViolation, got %v", name, err)
		}
		if res.Output != nil {
			t.Fatalf("%s: partial output returned: %s", name, res.Output)
		}
	}
}

func TestDispatchRejectsInconsistentEstimateTotals(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	reg.estimator.out = `{"agent":"estimator_agent","currency":"INR","status":"pending_approval","line_items":[],"parts_total":0,"labor_total":0,"tax":0,"grand_total":99}`
	r := newTestRouter(t, reg)

	_, err := r.Dispatch(context.Background(), contractx.Request{Action: "estimate", JobCardID: "J001"})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestDispatchPropagatesSpecialistError(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	reg.intake.err = contractx.ErrDataRetrieval
	r := newTestRouter(t, reg)

	_, err := r.Dispatch(context.Background(), contractx.Request{Action: "intake", Complaint: "noise"})
	if !errors.Is(err, contractx.ErrDataRetrieval) {
		t.Fatalf("expected ErrDataRetrieval, got %v", err)
	}
}

type malformedModel struct{}

func (malformedModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	return &schema.Message{Role: schema.Assistant, Content: `{"agent": "eta_agent", "eta": `}, nil
}

func (malformedModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (m malformedModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

func TestDispatchMalformedModelReplyFailsWithSchemaViolation(t *testing.T) {
	t.Parallel()

	m := malformedModel{}
	reg, err := specialistx.NewRegistryWithModels(context.Background(), specialistx.Models{
		Intake: m, Estimator: m, Communication: m, Scheduling: m, Grounded: m,
	}, promptx.LoadPromptSet(), specialistx.Dependencies{
		Store: knowledge.NewFixtureStore(knowledge.Fixtures{}),
	})
	if err != nil {
		t.Fatalf("NewRegistryWithModels() error = %v", err)
	}
	r := newTestRouter(t, reg)

	res, err := r.Dispatch(context.Background(), contractx.Request{Action: "eta", Input: "when is my car ready?"})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
	if res.Output != nil {
		t.Fatalf("partial output returned: %s", res.Output)
	}
}
