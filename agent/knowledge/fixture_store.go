package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// Fixtures is the JSON fallback data set, one file per collection.
type Fixtures struct {
	Customers       []domain.Customer
	Vehicles        []domain.Vehicle
	JobCards        []domain.JobCard
	Estimates       []domain.Estimate
	LineItems       []domain.LineItem
	Parts           []domain.Part
	LaborOperations []domain.LaborOperation
	FaultCodes      []domain.FaultCode
}

// LoadFixtures reads every collection from dir. Missing files are empty collections.
func LoadFixtures(dir string) (Fixtures, error) {
	var fx Fixtures
	files := []struct {
		name string
		dst  any
	}{
		{"customers.json", &fx.Customers},
		{"vehicles.json", &fx.Vehicles},
		{"job_cards.json", &fx.JobCards},
		{"estimates.json", &fx.Estimates},
		{"estimate_line_items.json", &fx.LineItems},
		{"parts.json", &fx.Parts},
		{"labor_operations.json", &fx.LaborOperations},
		{"fault_codes.json", &fx.FaultCodes},
	}
	for _, f := range files {
		raw, err := os.ReadFile(filepath.Join(dir, f.name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Fixtures{}, fmt.Errorf("read fixture %s: %w", f.name, err)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return Fixtures{}, fmt.Errorf("decode fixture %s: %w", f.name, err)
		}
	}
	return fx, nil
}

// FixtureStore serves the knowledge gateway from in-memory fixtures.
// Writes stay in memory for the lifetime of the process.
type FixtureStore struct {
	mu  sync.RWMutex
	fx  Fixtures
	now func() time.Time
}

func NewFixtureStore(fx Fixtures) *FixtureStore {
	for i := range fx.JobCards {
		fx.JobCards[i].FaultCodes = domain.NormalizeFaultCodes(fx.JobCards[i].FaultCodes)
	}
	return &FixtureStore{fx: fx, now: time.Now}
}

func (s *FixtureStore) GetVehicle(_ context.Context, id string) (*domain.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.fx.Vehicles {
		if v.ID == id {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (s *FixtureStore) GetVehicleByRegistration(_ context.Context, registration string) (*domain.Vehicle, error) {
	registration = strings.TrimSpace(registration)
	if registration == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.fx.Vehicles {
		if strings.EqualFold(v.RegistrationNumber, registration) {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (s *FixtureStore) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.fx.Customers {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *FixtureStore) GetJobCard(_ context.Context, id string) (*domain.JobCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.jobCardIndex(id); i >= 0 {
		out := s.fx.JobCards[i]
		out.FaultCodes = slices.Clone(out.FaultCodes)
		out.Tasks = slices.Clone(out.Tasks)
		return &out, nil
	}
	return nil, nil
}

func (s *FixtureStore) GetEstimateForJob(_ context.Context, jobCardID string) (*domain.Estimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.Estimate
	for i := range s.fx.Estimates {
		e := &s.fx.Estimates[i]
		if e.JobCardID != jobCardID {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	out.LineItems = nil
	return &out, nil
}

func (s *FixtureStore) GetEstimate(_ context.Context, id string) (*domain.Estimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.estimateIndex(id)
	if i < 0 {
		return nil, nil
	}
	out := s.fx.Estimates[i]
	out.LineItems = s.lineItemsFor(id)
	return &out, nil
}

func (s *FixtureStore) GetEstimateLineItems(_ context.Context, estimateID string) ([]domain.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lineItemsFor(estimateID), nil
}

func (s *FixtureStore) GetParts(_ context.Context, ids []string) ([]domain.Part, error) {
	want := toSet(ids)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Part
	for _, p := range s.fx.Parts {
		_, byID := want[p.ID]
		_, byCode := want[p.Code]
		if byID || (p.Code != "" && byCode) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *FixtureStore) GetLaborOperations(_ context.Context, ids []string) ([]domain.LaborOperation, error) {
	want := toSet(ids)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LaborOperation
	for _, l := range s.fx.LaborOperations {
		if _, ok := want[l.ID]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *FixtureStore) GetFaultCodes(_ context.Context, codes []string) ([]domain.FaultCode, error) {
	want := toSet(domain.NormalizeFaultCodes(codes))
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.FaultCode
	for _, f := range s.fx.FaultCodes {
		if _, ok := want[strings.ToUpper(f.Code)]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *FixtureStore) UpdateJobCardStatus(_ context.Context, id string, status domain.JobStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", contractx.ErrValidation, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.jobCardIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: job card %s", contractx.ErrNotFound, id)
	}
	s.fx.JobCards[i].Status = status
	return nil
}

// SaveDraftJobCard refreshes the open draft for the same vehicle and
// complaint, or appends a new one.
func (s *FixtureStore) SaveDraftJobCard(_ context.Context, card *domain.JobCard) error {
	if card == nil || strings.TrimSpace(card.VehicleID) == "" {
		return fmt.Errorf("%w: job card vehicle id is required", contractx.ErrValidation)
	}
	card.Status = domain.JobDraft
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.fx.JobCards {
		if existing.VehicleID != card.VehicleID || existing.Status != domain.JobDraft ||
			!strings.EqualFold(strings.TrimSpace(existing.Complaint), strings.TrimSpace(card.Complaint)) {
			continue
		}
		card.ID = existing.ID
		card.CreatedAt = existing.CreatedAt
		card.AdvisorID = firstNonBlank(card.AdvisorID, existing.AdvisorID)
		s.fx.JobCards[i] = *card
		return nil
	}

	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if s.jobCardIndex(card.ID) >= 0 {
		return fmt.Errorf("%w: job card %s already exists", contractx.ErrValidation, card.ID)
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = s.now().UTC()
	}
	s.fx.JobCards = append(s.fx.JobCards, *card)
	return nil
}

func firstNonBlank(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func (s *FixtureStore) UpsertEstimate(_ context.Context, est *domain.Estimate) error {
	if est == nil || strings.TrimSpace(est.JobCardID) == "" {
		return fmt.Errorf("%w: estimate job card id is required", contractx.ErrValidation)
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.fx.Estimates {
		if s.fx.Estimates[i].JobCardID == est.JobCardID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		prev := s.fx.Estimates[idx]
		est.ID = prev.ID
		est.CreatedAt = prev.CreatedAt
		est.Status = domain.RecreatedStatus(prev.Status)
	} else {
		if est.ID == "" {
			est.ID = uuid.NewString()
		}
		if est.Status == "" {
			est.Status = domain.EstimatePendingApproval
		}
		if est.CreatedAt.IsZero() {
			est.CreatedAt = now
		}
	}
	est.UpdatedAt = now

	for i := range est.LineItems {
		est.LineItems[i].EstimateID = est.ID
		if est.LineItems[i].ID == "" {
			est.LineItems[i].ID = uuid.NewString()
		}
	}

	stored := *est
	stored.LineItems = nil
	if idx >= 0 {
		s.fx.Estimates[idx] = stored
	} else {
		s.fx.Estimates = append(s.fx.Estimates, stored)
	}

	kept := s.fx.LineItems[:0]
	for _, item := range s.fx.LineItems {
		if item.EstimateID != est.ID {
			kept = append(kept, item)
		}
	}
	s.fx.LineItems = append(kept, est.LineItems...)
	return nil
}

func (s *FixtureStore) UpdateEstimateStatus(_ context.Context, id string, status domain.EstimateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.estimateIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: estimate %s", contractx.ErrNotFound, id)
	}
	s.fx.Estimates[i].Status = status
	s.fx.Estimates[i].UpdatedAt = s.now().UTC()
	return nil
}

// CountEstimates returns how many estimates exist for a job card.
func (s *FixtureStore) CountEstimates(jobCardID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.fx.Estimates {
		if e.JobCardID == jobCardID {
			n++
		}
	}
	return n
}

// CountJobCards counts cards for a vehicle in the given status.
func (s *FixtureStore) CountJobCards(vehicleID string, status domain.JobStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.fx.JobCards {
		if c.VehicleID == vehicleID && c.Status == status {
			n++
		}
	}
	return n
}

func (s *FixtureStore) jobCardIndex(id string) int {
	for i := range s.fx.JobCards {
		if s.fx.JobCards[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *FixtureStore) estimateIndex(id string) int {
	for i := range s.fx.Estimates {
		if s.fx.Estimates[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *FixtureStore) lineItemsFor(estimateID string) []domain.LineItem {
	var out []domain.LineItem
	for _, item := range s.fx.LineItems {
		if item.EstimateID == estimateID {
			out = append(out, item)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

var _ contractx.KnowledgeStore = (*FixtureStore)(nil)
