package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// BunStore is the Postgres-backed knowledge store.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

// OpenPostgres opens a bun DB over pgdriver for the given DSN.
func OpenPostgres(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database url is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db, now: time.Now}
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *BunStore) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var m vehicleModel
	err := s.db.NewSelect().Model(&m).Where("vehicle_id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFoundAsNil("vehicle", err)
	}
	return m.toDomain(), nil
}

func (s *BunStore) GetVehicleByRegistration(ctx context.Context, registration string) (*domain.Vehicle, error) {
	registration = strings.TrimSpace(registration)
	if registration == "" {
		return nil, nil
	}
	var m vehicleModel
	err := s.db.NewSelect().Model(&m).
		Where("UPPER(registration_number) = ?", strings.ToUpper(registration)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundAsNil("vehicle", err)
	}
	return m.toDomain(), nil
}

func (s *BunStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var m customerModel
	err := s.db.NewSelect().Model(&m).Where("customer_id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFoundAsNil("customer", err)
	}
	return m.toDomain(), nil
}

func (s *BunStore) GetJobCard(ctx context.Context, id string) (*domain.JobCard, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var m jobCardModel
	err := s.db.NewSelect().Model(&m).Where("job_card_id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFoundAsNil("job card", err)
	}
	return m.toDomain(), nil
}

func (s *BunStore) GetEstimateForJob(ctx context.Context, jobCardID string) (*domain.Estimate, error) {
	if strings.TrimSpace(jobCardID) == "" {
		return nil, nil
	}
	var m estimateModel
	err := s.db.NewSelect().Model(&m).
		Where("job_card_id = ?", jobCardID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundAsNil("estimate", err)
	}
	return m.toDomain(), nil
}

func (s *BunStore) GetEstimate(ctx context.Context, id string) (*domain.Estimate, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var m estimateModel
	err := s.db.NewSelect().Model(&m).Where("estimate_id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFoundAsNil("estimate", err)
	}
	est := m.toDomain()
	items, err := s.GetEstimateLineItems(ctx, est.ID)
	if err != nil {
		return nil, err
	}
	est.LineItems = items
	return est, nil
}

func (s *BunStore) GetEstimateLineItems(ctx context.Context, estimateID string) ([]domain.LineItem, error) {
	if strings.TrimSpace(estimateID) == "" {
		return nil, nil
	}
	var rows []lineItemModel
	err := s.db.NewSelect().Model(&rows).
		Where("estimate_id = ?", estimateID).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select line items: %w", err)
	}
	out := make([]domain.LineItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetParts matches either part id or part code.
func (s *BunStore) GetParts(ctx context.Context, ids []string) ([]domain.Part, error) {
	ids = compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []partModel
	err := s.db.NewSelect().Model(&rows).
		WhereOr("part_id IN (?)", bun.In(ids)).
		WhereOr("part_code IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select parts: %w", err)
	}
	out := make([]domain.Part, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Part{
			ID:          r.ID,
			Code:        r.Code,
			Description: r.Description,
			UnitPrice:   r.UnitPrice,
			Category:    r.Category,
		})
	}
	return out, nil
}

func (s *BunStore) GetLaborOperations(ctx context.Context, ids []string) ([]domain.LaborOperation, error) {
	ids = compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []laborModel
	err := s.db.NewSelect().Model(&rows).Where("labor_id IN (?)", bun.In(ids)).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select labor operations: %w", err)
	}
	out := make([]domain.LaborOperation, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.LaborOperation{
			ID:             r.ID,
			Name:           r.Name,
			HourlyRate:     r.HourlyRate,
			EstimatedHours: r.EstimatedHours,
		})
	}
	return out, nil
}

func (s *BunStore) GetFaultCodes(ctx context.Context, codes []string) ([]domain.FaultCode, error) {
	codes = domain.NormalizeFaultCodes(codes)
	if len(codes) == 0 {
		return nil, nil
	}
	var rows []faultModel
	err := s.db.NewSelect().Model(&rows).Where("fault_code IN (?)", bun.In(codes)).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select fault codes: %w", err)
	}
	out := make([]domain.FaultCode, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.FaultCode{
			Code:             r.Code,
			Description:      r.Description,
			LaborOperationID: r.LaborOperationID,
			WarrantyEligible: r.WarrantyEligible,
		})
	}
	return out, nil
}

func (s *BunStore) UpdateJobCardStatus(ctx context.Context, id string, status domain.JobStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", contractx.ErrValidation, status)
	}
	res, err := s.db.NewUpdate().
		Model((*jobCardModel)(nil)).
		Set("status = ?", string(status)).
		Where("job_card_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update job card status: %w", err)
	}
	return requireAffected(res, "job card", id)
}

// SaveDraftJobCard keeps one open draft per vehicle and complaint. A repeat
// intake refreshes that draft in place and keeps its id.
func (s *BunStore) SaveDraftJobCard(ctx context.Context, card *domain.JobCard) error {
	if card == nil || strings.TrimSpace(card.VehicleID) == "" {
		return fmt.Errorf("%w: job card vehicle id is required", contractx.ErrValidation)
	}
	now := s.now().UTC()
	card.Status = domain.JobDraft

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing jobCardModel
		err := tx.NewSelect().Model(&existing).
			Where("vehicle_id = ?", card.VehicleID).
			Where("status = ?", string(domain.JobDraft)).
			Where("lower(complaint) = lower(?)", strings.TrimSpace(card.Complaint)).
			Limit(1).
			For("UPDATE").
			Scan(ctx)
		switch {
		case err == nil:
			card.ID = existing.ID
			card.CreatedAt = existing.CreatedAt
			m := newJobCardModel(card)
			_, err := tx.NewUpdate().Model(&m).
				Column("customer_id", "obd_fault_codes", "tasks", "service_type", "risk_indicators", "obd_report_text", "mileage").
				WherePK().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update job card: %w", err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("select job card: %w", err)
		}

		if card.ID == "" {
			card.ID = uuid.NewString()
		}
		if card.CreatedAt.IsZero() {
			card.CreatedAt = now
		}
		m := newJobCardModel(card)
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return fmt.Errorf("insert job card: %w", err)
		}
		return nil
	})
}

// UpsertEstimate keeps one live estimate per job card. Re-creation replaces
// the line items in the same transaction and keeps the existing id.
func (s *BunStore) UpsertEstimate(ctx context.Context, est *domain.Estimate) error {
	if est == nil || strings.TrimSpace(est.JobCardID) == "" {
		return fmt.Errorf("%w: estimate job card id is required", contractx.ErrValidation)
	}
	now := s.now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing estimateModel
		err := tx.NewSelect().Model(&existing).
			Where("job_card_id = ?", est.JobCardID).
			Limit(1).
			For("UPDATE").
			Scan(ctx)
		switch {
		case err == nil:
			est.ID = existing.ID
			est.CreatedAt = existing.CreatedAt
			est.Status = domain.RecreatedStatus(domain.EstimateStatus(existing.Status))
		case errors.Is(err, sql.ErrNoRows):
			if est.Status == "" {
				est.Status = domain.EstimatePendingApproval
			}
			if est.ID == "" {
				est.ID = uuid.NewString()
			}
			if est.CreatedAt.IsZero() {
				est.CreatedAt = now
			}
		default:
			return fmt.Errorf("select estimate: %w", err)
		}
		est.UpdatedAt = now

		m := newEstimateModel(est)
		_, err = tx.NewInsert().Model(&m).
			On("CONFLICT (job_card_id) DO UPDATE").
			Set("currency = EXCLUDED.currency").
			Set("status = EXCLUDED.status").
			Set("parts_total = EXCLUDED.parts_total").
			Set("labor_total = EXCLUDED.labor_total").
			Set("tax = EXCLUDED.tax").
			Set("grand_total = EXCLUDED.grand_total").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert estimate: %w", err)
		}

		if _, err := tx.NewDelete().Model((*lineItemModel)(nil)).Where("estimate_id = ?", est.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete line items: %w", err)
		}
		if len(est.LineItems) == 0 {
			return nil
		}

		rows := make([]lineItemModel, 0, len(est.LineItems))
		for i := range est.LineItems {
			item := &est.LineItems[i]
			item.EstimateID = est.ID
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			rows = append(rows, lineItemModel{
				ID:           item.ID,
				EstimateID:   est.ID,
				Position:     i,
				Type:         string(item.Type),
				ReferenceID:  item.ReferenceID,
				Name:         item.Name,
				RelatedFault: item.RelatedFault,
				ResolvesTask: item.ResolvesTask,
				Quantity:     item.Quantity,
				UnitPrice:    item.UnitPrice,
				Total:        item.Total,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert line items: %w", err)
		}
		return nil
	})
}

func (s *BunStore) UpdateEstimateStatus(ctx context.Context, id string, status domain.EstimateStatus) error {
	res, err := s.db.NewUpdate().
		Model((*estimateModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", s.now().UTC()).
		Where("estimate_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update estimate status: %w", err)
	}
	return requireAffected(res, "estimate", id)
}

func notFoundAsNil(entity string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return fmt.Errorf("select %s: %w", entity, err)
}

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", contractx.ErrNotFound, entity, id)
	}
	return nil
}

func compact(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ contractx.KnowledgeStore = (*BunStore)(nil)
