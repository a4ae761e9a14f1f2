package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	routerx "github.com/tanpawarit/autoshop-agent/agent/agents/router"
	specialistx "github.com/tanpawarit/autoshop-agent/agent/agents/specialist"
	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
	"github.com/tanpawarit/autoshop-agent/agent/knowledge"
	promptx "github.com/tanpawarit/autoshop-agent/agent/prompt"
	toolx "github.com/tanpawarit/autoshop-agent/agent/tool"
)

type fakeDispatcher struct {
	last  contractx.Request
	calls int
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req contractx.Request) (contractx.Result, error) {
	f.calls++
	f.last = req
	return contractx.Result{Capability: contractx.CapabilityIntake, Output: json.RawMessage(`{}`)}, nil
}

type fakeToolCallingModel struct {
	responses []*schema.Message
	idx       int
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func replies(contents ...string) *fakeToolCallingModel {
	f := &fakeToolCallingModel{}
	for _, c := range contents {
		f.responses = append(f.responses, &schema.Message{Role: schema.Assistant, Content: c})
	}
	return f
}

func TestBuildRequestFreeTextPrefixesAction(t *testing.T) {
	t.Parallel()

	req, err := BuildRequest(contractx.MasterRequest{Action: "Intake", UserInput: "  brake noise on V001 "})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.Shape != contractx.ShapeFreeText || req.Action != "intake" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Input != "action: intake\nbrake noise on V001" {
		t.Fatalf("unexpected input: %q", req.Input)
	}
}

func TestBuildRequestJobCardKeepsAction(t *testing.T) {
	t.Parallel()

	req, err := BuildRequest(contractx.MasterRequest{
		Action: "estimate",
		JobCard: &contractx.JobCardPayload{
			JobCardID:  "J001",
			VehicleID:  "V001",
			FaultCodes: []string{"P0301"},
			Tasks:      []string{"Replace spark plug"},
		},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.Shape != contractx.ShapeJobCard || req.Action != "estimate" || req.JobCardID != "J001" || req.VehicleID != "V001" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.Contains(req.Input, "Fault codes: P0301") {
		t.Fatalf("unexpected input: %q", req.Input)
	}
}

func TestBuildRequestCommunicationRequiresIDs(t *testing.T) {
	t.Parallel()

	_, err := BuildRequest(contractx.MasterRequest{Action: "chat", CustomerID: "C001", Question: "status?"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "job_card_id") {
		t.Fatalf("unexpected error: %v", err)
	}

	req, err := BuildRequest(contractx.MasterRequest{Action: "chat", CustomerID: "C001", JobCardID: "J001"})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.Shape != contractx.ShapeCommunication {
		t.Fatalf("unexpected shape: %s", req.Shape)
	}
}

func TestBuildRequestFieldFallback(t *testing.T) {
	t.Parallel()

	req, err := BuildRequest(contractx.MasterRequest{
		VehicleID:         "V001",
		CustomerComplaint: "brake noise",
		OBDReportText:     "P0301",
	})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	want := "Vehicle ID: V001. Complaint: brake noise. OBD report: P0301."
	if req.Shape != contractx.ShapeFields || req.Input != want {
		t.Fatalf("unexpected request: shape=%s input=%q", req.Shape, req.Input)
	}
}

func TestBuildRequestEmptyFails(t *testing.T) {
	t.Parallel()

	_, err := BuildRequest(contractx.MasterRequest{Action: "eta"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestServiceExecuteDispatchesOnce(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	est, err := NewEstimateService(knowledge.NewFixtureStore(knowledge.Fixtures{}))
	if err != nil {
		t.Fatalf("NewEstimateService() error = %v", err)
	}
	svc, err := New(d, est)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := svc.Execute(context.Background(), contractx.MasterRequest{VehicleID: "V001", CustomerComplaint: "noise"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if d.calls != 1 || d.last.VehicleID != "V001" {
		t.Fatalf("unexpected dispatch: calls=%d req=%+v", d.calls, d.last)
	}

	if _, err := svc.Execute(context.Background(), contractx.MasterRequest{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if d.calls != 1 {
		t.Fatalf("invalid request must not be dispatched")
	}
}

func TestEstimateLifecycle(t *testing.T) {
	t.Parallel()

	store := knowledge.NewFixtureStore(knowledge.Fixtures{
		Estimates: []domain.Estimate{{ID: "E001", JobCardID: "J001", Status: domain.EstimatePendingApproval, CreatedAt: time.Now()}},
	})
	svc, err := NewEstimateService(store)
	if err != nil {
		t.Fatalf("NewEstimateService() error = %v", err)
	}
	ctx := context.Background()

	est, err := svc.ApproveEstimate(ctx, "E001")
	if err != nil {
		t.Fatalf("ApproveEstimate() error = %v", err)
	}
	if est.Status != domain.EstimateApproved {
		t.Fatalf("unexpected status: %s", est.Status)
	}

	if _, err := svc.RejectEstimate(ctx, "E001"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	est, err = svc.ReviseEstimate(ctx, "E001")
	if err != nil {
		t.Fatalf("ReviseEstimate() error = %v", err)
	}
	stored, _ := store.GetEstimate(ctx, "E001")
	if est.Status != domain.EstimateRevised || stored.Status != domain.EstimateRevised {
		t.Fatalf("revision not stored: %s / %s", est.Status, stored.Status)
	}

	if _, err := svc.ApproveEstimate(ctx, "E404"); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCustomerApprovalEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := knowledge.NewFixtureStore(knowledge.Fixtures{
		Customers: []domain.Customer{{ID: "C001"}, {ID: "C999"}},
		Vehicles:  []domain.Vehicle{{ID: "V001", CustomerID: "C001"}},
		JobCards: []domain.JobCard{
			{ID: "J001", CustomerID: "C001", VehicleID: "V001", Status: domain.JobPendingApproval},
			{ID: "J002", CustomerID: "C999", VehicleID: "V001", Status: domain.JobPendingApproval},
		},
	})
	grounded := replies(
		`{"answer":"Your job J001 is approved."}`,
		`{"answer":"I don't have that information in the provided records."}`,
	)
	reg, err := specialistx.NewRegistryWithModels(ctx, specialistx.Models{
		Intake: replies(), Estimator: replies(), Communication: replies(), Scheduling: replies(), Grounded: grounded,
	}, promptx.LoadPromptSet(), specialistx.Dependencies{Store: store})
	if err != nil {
		t.Fatalf("NewRegistryWithModels() error = %v", err)
	}
	router, err := routerx.NewRouter(ctx, reg, store)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	est, _ := NewEstimateService(store)
	svc, err := New(router, est)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	approve := contractx.MasterRequest{Action: "chat", CustomerID: "C001", JobCardID: "J001", VehicleID: "V001", Question: "I approve"}

	first := runCommunication(t, svc, approve)
	if first.Message != toolx.AnswerDecisionStored {
		t.Fatalf("unexpected first reply: %s", first.Message)
	}
	card, _ := store.GetJobCard(ctx, "J001")
	if card.Status != domain.JobApproved {
		t.Fatalf("expected approved, got %s", card.Status)
	}

	second := runCommunication(t, svc, approve)
	if second.Message != "Your job J001 is approved." {
		t.Fatalf("second call must use grounded reasoning, got %s", second.Message)
	}

	foreign := runCommunication(t, svc, contractx.MasterRequest{
		Action: "chat", CustomerID: "C001", JobCardID: "J002", VehicleID: "V001", Question: "I approve",
	})
	if foreign.Message != toolx.AnswerNoInformation {
		t.Fatalf("unexpected foreign reply: %s", foreign.Message)
	}
	card, _ = store.GetJobCard(ctx, "J002")
	if card.Status != domain.JobPendingApproval {
		t.Fatalf("ownership mismatch must not change status, got %s", card.Status)
	}
}

func TestFreeTextJobCardCostProducesEstimate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := knowledge.NewFixtureStore(knowledge.Fixtures{
		Customers: []domain.Customer{{ID: "C001"}},
		Vehicles:  []domain.Vehicle{{ID: "V001", CustomerID: "C001"}},
		JobCards: []domain.JobCard{{
			ID: "J001", CustomerID: "C001", VehicleID: "V001", Status: domain.JobPendingApproval,
			Complaint: "Engine misfire", FaultCodes: []string{"P0301"}, Tasks: []string{"Diagnose misfire on cylinder 1"},
		}},
		LaborOperations: []domain.LaborOperation{{ID: "L001", HourlyRate: 800, EstimatedHours: 1.5}},
		FaultCodes:      []domain.FaultCode{{Code: "P0301", LaborOperationID: "L001"}},
	})
	reg, err := specialistx.NewRegistryWithModels(ctx, specialistx.Models{
		Intake: replies(), Estimator: replies(`{"parts":[]}`), Communication: replies(), Scheduling: replies(), Grounded: replies(),
	}, promptx.LoadPromptSet(), specialistx.Dependencies{Store: store, Currency: "INR", TaxRate: 0.18})
	if err != nil {
		t.Fatalf("NewRegistryWithModels() error = %v", err)
	}
	router, err := routerx.NewRouter(ctx, reg, store)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	est, _ := NewEstimateService(store)
	svc, err := New(router, est)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := svc.Execute(ctx, contractx.MasterRequest{UserInput: "How much will job card j001 cost to fix?"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Capability != contractx.CapabilityEstimation {
		t.Fatalf("unexpected capability: %s", res.Capability)
	}
	var out contractx.EstimateResult
	if err := json.Unmarshal(res.Output, &out); err != nil {
		t.Fatalf("decode estimate: %v", err)
	}
	if out.JobCardID != "J001" || len(out.LineItems) != 1 || out.LaborTotal != 1200 {
		t.Fatalf("unexpected estimate: %+v", out)
	}
	stored, err := store.GetEstimateForJob(ctx, "J001")
	if err != nil || stored == nil || stored.ID != out.EstimateID {
		t.Fatalf("estimate not stored for J001: %+v err=%v", stored, err)
	}
}

func TestBuildRequestFreeTextNamesJobCard(t *testing.T) {
	t.Parallel()

	req, err := BuildRequest(contractx.MasterRequest{UserInput: "What's the quote for j042?"})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.JobCardID != "J042" {
		t.Fatalf("job card id not taken from text: %+v", req)
	}

	req, _ = BuildRequest(contractx.MasterRequest{UserInput: "quote for J042", JobCardID: "J001"})
	if req.JobCardID != "J001" {
		t.Fatalf("explicit job card id must win, got %s", req.JobCardID)
	}
}

func runCommunication(t *testing.T, svc *Service, in contractx.MasterRequest) contractx.CommunicationResult {
	t.Helper()

	res, err := svc.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Capability != contractx.CapabilityCommunication {
		t.Fatalf("unexpected capability: %s", res.Capability)
	}
	var out contractx.CommunicationResult
	if err := json.Unmarshal(res.Output, &out); err != nil {
		t.Fatalf("decode communication: %v", err)
	}
	return out
}
