package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

func testFixtures() Fixtures {
	return Fixtures{
		Customers: []domain.Customer{{ID: "C001", Name: "Asha"}},
		Vehicles:  []domain.Vehicle{{ID: "V001", CustomerID: "C001", Make: "Honda", RegistrationNumber: "KA01AB1234"}},
		JobCards: []domain.JobCard{{
			ID: "J001", CustomerID: "C001", VehicleID: "V001",
			FaultCodes: []string{"P0301 - Cylinder 1 Misfire"}, Status: domain.JobPendingApproval,
		}},
		Parts:           []domain.Part{{ID: "PT01", Code: "SPK-01", UnitPrice: 350}},
		LaborOperations: []domain.LaborOperation{{ID: "L001", HourlyRate: 800, EstimatedHours: 1.5}},
		FaultCodes:      []domain.FaultCode{{Code: "P0301", LaborOperationID: "L001"}},
	}
}

func TestLoadFixturesMissingFilesAreEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "customers.json"), []byte(`[{"customer_id":"C001","name":"Asha"}]`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	fx, err := LoadFixtures(dir)
	if err != nil {
		t.Fatalf("LoadFixtures() error = %v", err)
	}
	if len(fx.Customers) != 1 || fx.Customers[0].Name != "Asha" {
		t.Fatalf("unexpected customers: %+v", fx.Customers)
	}
	if len(fx.Vehicles) != 0 {
		t.Fatalf("expected no vehicles, got %d", len(fx.Vehicles))
	}
}

func TestLoadFixturesRejectsBadJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "parts.json"), []byte(`{`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadFixtures(dir); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadFixturesSampleData(t *testing.T) {
	t.Parallel()

	fx, err := LoadFixtures(filepath.Join("..", "..", "data"))
	if err != nil {
		t.Fatalf("LoadFixtures() error = %v", err)
	}
	store := NewFixtureStore(fx)
	ctx := context.Background()

	v, err := store.GetVehicleByRegistration(ctx, "ka01ab1234")
	if err != nil || v == nil || v.ID != "V001" {
		t.Fatalf("unexpected vehicle: %+v err=%v", v, err)
	}
	card, err := store.GetJobCard(ctx, "J001")
	if err != nil || card == nil {
		t.Fatalf("job card J001 missing: %v", err)
	}
	if len(card.FaultCodes) != 1 || card.FaultCodes[0] != "P0301" {
		t.Fatalf("fault codes not normalized: %v", card.FaultCodes)
	}
	items, err := store.GetEstimateLineItems(ctx, "E001")
	if err != nil || len(items) != 2 {
		t.Fatalf("unexpected line items: %d err=%v", len(items), err)
	}
	for _, item := range items {
		if item.RelatedFault == "" || item.ResolvesTask == "" {
			t.Fatalf("line item %s lacks explainability links", item.ID)
		}
	}
}

func TestFixtureStoreLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFixtureStore(testFixtures())

	card, err := store.GetJobCard(ctx, "J001")
	if err != nil || card == nil {
		t.Fatalf("GetJobCard() = %v, %v", card, err)
	}
	if len(card.FaultCodes) != 1 || card.FaultCodes[0] != "P0301" {
		t.Fatalf("fault codes not normalized: %v", card.FaultCodes)
	}

	v, _ := store.GetVehicleByRegistration(ctx, "ka01ab1234")
	if v == nil || v.ID != "V001" {
		t.Fatalf("unexpected vehicle: %+v", v)
	}

	parts, _ := store.GetParts(ctx, []string{"SPK-01"})
	if len(parts) != 1 {
		t.Fatalf("expected lookup by part code, got %+v", parts)
	}

	faults, _ := store.GetFaultCodes(ctx, []string{"p0301 misfire"})
	if len(faults) != 1 || faults[0].LaborOperationID != "L001" {
		t.Fatalf("unexpected faults: %+v", faults)
	}

	missing, err := store.GetCustomer(ctx, "C404")
	if err != nil || missing != nil {
		t.Fatalf("expected nil customer without error, got %+v, %v", missing, err)
	}
}

func TestFixtureStoreUpdateJobCardStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFixtureStore(testFixtures())

	if err := store.UpdateJobCardStatus(ctx, "J001", domain.JobApproved); err != nil {
		t.Fatalf("UpdateJobCardStatus() error = %v", err)
	}
	card, _ := store.GetJobCard(ctx, "J001")
	if card.Status != domain.JobApproved {
		t.Fatalf("status = %s, want approved", card.Status)
	}

	err := store.UpdateJobCardStatus(ctx, "J404", domain.JobApproved)
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFixtureStoreUpsertEstimateReplacesInPlace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFixtureStore(testFixtures())

	first := &domain.Estimate{JobCardID: "J001", Currency: "INR", LineItems: []domain.LineItem{
		{Type: domain.LineItemLabor, ReferenceID: "L001", Quantity: 1, UnitPrice: 1200},
	}}
	if err := store.UpsertEstimate(ctx, first); err != nil {
		t.Fatalf("UpsertEstimate() error = %v", err)
	}
	if first.Status != domain.EstimatePendingApproval || first.ID == "" {
		t.Fatalf("unexpected first estimate: %+v", first)
	}
	if err := store.UpdateEstimateStatus(ctx, first.ID, domain.EstimateApproved); err != nil {
		t.Fatalf("UpdateEstimateStatus() error = %v", err)
	}

	second := &domain.Estimate{JobCardID: "J001", Currency: "INR", LineItems: []domain.LineItem{
		{Type: domain.LineItemLabor, ReferenceID: "L001", Quantity: 1, UnitPrice: 1200},
		{Type: domain.LineItemPart, ReferenceID: "PT01", Quantity: 4, UnitPrice: 350},
	}}
	if err := store.UpsertEstimate(ctx, second); err != nil {
		t.Fatalf("UpsertEstimate() error = %v", err)
	}

	if got := store.CountEstimates("J001"); got != 1 {
		t.Fatalf("CountEstimates() = %d, want 1", got)
	}
	if second.ID != first.ID {
		t.Fatalf("estimate id changed: %s -> %s", first.ID, second.ID)
	}
	if second.Status != domain.EstimateRevised {
		t.Fatalf("status = %s, want revised", second.Status)
	}
	items, _ := store.GetEstimateLineItems(ctx, first.ID)
	if len(items) != 2 {
		t.Fatalf("expected line items to be replaced, got %d", len(items))
	}
}

func TestFixtureStoreSaveDraftJobCardReusesOpenDraft(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFixtureStore(testFixtures())

	first := &domain.JobCard{VehicleID: "V001", Complaint: "Brake noise", Tasks: []string{"Inspect pads"}}
	if err := store.SaveDraftJobCard(ctx, first); err != nil {
		t.Fatalf("SaveDraftJobCard() error = %v", err)
	}
	second := &domain.JobCard{VehicleID: "V001", Complaint: "brake noise ", Tasks: []string{"Replace pads"}}
	if err := store.SaveDraftJobCard(ctx, second); err != nil {
		t.Fatalf("SaveDraftJobCard() error = %v", err)
	}
	if first.ID == "" || second.ID != first.ID {
		t.Fatalf("expected the draft to be reused: %q vs %q", first.ID, second.ID)
	}
	stored, _ := store.GetJobCard(ctx, first.ID)
	if len(stored.Tasks) != 1 || stored.Tasks[0] != "Replace pads" {
		t.Fatalf("draft not refreshed: %+v", stored)
	}

	other := &domain.JobCard{VehicleID: "V001", Complaint: "AC not cooling"}
	if err := store.SaveDraftJobCard(ctx, other); err != nil {
		t.Fatalf("SaveDraftJobCard() error = %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("a different complaint must open a new draft")
	}
	if n := store.CountJobCards("V001", domain.JobDraft); n != 2 {
		t.Fatalf("expected two drafts, got %d", n)
	}

	if err := store.SaveDraftJobCard(ctx, &domain.JobCard{Complaint: "noise"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation without a vehicle, got %v", err)
	}
}
