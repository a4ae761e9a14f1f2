package knowledge

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

type customerModel struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID               string `bun:"customer_id,pk"`
	Name             string `bun:"name"`
	Phone            string `bun:"phone"`
	Email            string `bun:"email"`
	PreferredContact string `bun:"preferred_contact"`
}

func (m customerModel) toDomain() *domain.Customer {
	return &domain.Customer{
		ID:               m.ID,
		Name:             m.Name,
		Phone:            m.Phone,
		Email:            m.Email,
		PreferredContact: m.PreferredContact,
	}
}

type vehicleModel struct {
	bun.BaseModel `bun:"table:vehicles,alias:v"`

	ID                 string `bun:"vehicle_id,pk"`
	CustomerID         string `bun:"customer_id"`
	Make               string `bun:"make"`
	Model              string `bun:"model"`
	Year               int    `bun:"year"`
	VIN                string `bun:"vin"`
	RegistrationNumber string `bun:"registration_number"`
	Mileage            int    `bun:"mileage"`
}

func (m vehicleModel) toDomain() *domain.Vehicle {
	return &domain.Vehicle{
		ID:                 m.ID,
		CustomerID:         m.CustomerID,
		Make:               m.Make,
		Model:              m.Model,
		Year:               m.Year,
		VIN:                m.VIN,
		RegistrationNumber: m.RegistrationNumber,
		Mileage:            m.Mileage,
	}
}

type jobCardModel struct {
	bun.BaseModel `bun:"table:job_cards,alias:jc"`

	ID             string    `bun:"job_card_id,pk"`
	CustomerID     string    `bun:"customer_id"`
	VehicleID      string    `bun:"vehicle_id"`
	Complaint      string    `bun:"complaint"`
	FaultCodes     []string  `bun:"obd_fault_codes,array"`
	Tasks          []string  `bun:"tasks,array"`
	ServiceType    string    `bun:"service_type"`
	Status         string    `bun:"status"`
	RiskIndicators []string  `bun:"risk_indicators,array"`
	ReportText     string    `bun:"obd_report_text"`
	ReportSummary  string    `bun:"obd_report_summary"`
	AdvisorID      string    `bun:"advisor_id"`
	Mileage        int       `bun:"mileage"`
	CreatedAt      time.Time `bun:"created_at"`
}

func newJobCardModel(c *domain.JobCard) jobCardModel {
	return jobCardModel{
		ID:             c.ID,
		CustomerID:     c.CustomerID,
		VehicleID:      c.VehicleID,
		Complaint:      c.Complaint,
		FaultCodes:     c.FaultCodes,
		Tasks:          c.Tasks,
		ServiceType:    string(c.ServiceType),
		Status:         string(c.Status),
		RiskIndicators: c.RiskIndicators,
		ReportText:     c.ReportText,
		ReportSummary:  c.ReportSummary,
		AdvisorID:      c.AdvisorID,
		Mileage:        c.Mileage,
		CreatedAt:      c.CreatedAt,
	}
}

func (m jobCardModel) toDomain() *domain.JobCard {
	return &domain.JobCard{
		ID:             m.ID,
		CustomerID:     m.CustomerID,
		VehicleID:      m.VehicleID,
		Complaint:      m.Complaint,
		FaultCodes:     domain.NormalizeFaultCodes(m.FaultCodes),
		Tasks:          m.Tasks,
		ServiceType:    domain.ServiceType(m.ServiceType),
		Status:         domain.JobStatus(m.Status),
		RiskIndicators: m.RiskIndicators,
		ReportText:     m.ReportText,
		ReportSummary:  m.ReportSummary,
		AdvisorID:      m.AdvisorID,
		Mileage:        m.Mileage,
		CreatedAt:      m.CreatedAt,
	}
}

type estimateModel struct {
	bun.BaseModel `bun:"table:estimates,alias:e"`

	ID         string    `bun:"estimate_id,pk"`
	JobCardID  string    `bun:"job_card_id"`
	VehicleID  string    `bun:"vehicle_id"`
	Currency   string    `bun:"currency"`
	Status     string    `bun:"status"`
	PartsTotal float64   `bun:"parts_total"`
	LaborTotal float64   `bun:"labor_total"`
	Tax        float64   `bun:"tax"`
	GrandTotal float64   `bun:"grand_total"`
	CreatedAt  time.Time `bun:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at"`
}

func newEstimateModel(e *domain.Estimate) estimateModel {
	return estimateModel{
		ID:         e.ID,
		JobCardID:  e.JobCardID,
		VehicleID:  e.VehicleID,
		Currency:   e.Currency,
		Status:     string(e.Status),
		PartsTotal: e.PartsTotal,
		LaborTotal: e.LaborTotal,
		Tax:        e.Tax,
		GrandTotal: e.GrandTotal,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func (m estimateModel) toDomain() *domain.Estimate {
	return &domain.Estimate{
		ID:         m.ID,
		JobCardID:  m.JobCardID,
		VehicleID:  m.VehicleID,
		Currency:   m.Currency,
		Status:     domain.EstimateStatus(m.Status),
		PartsTotal: m.PartsTotal,
		LaborTotal: m.LaborTotal,
		Tax:        m.Tax,
		GrandTotal: m.GrandTotal,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type lineItemModel struct {
	bun.BaseModel `bun:"table:estimate_line_items,alias:li"`

	ID           string  `bun:"line_item_id,pk"`
	EstimateID   string  `bun:"estimate_id"`
	Position     int     `bun:"position"`
	Type         string  `bun:"type"`
	ReferenceID  string  `bun:"reference_id"`
	Name         string  `bun:"name"`
	RelatedFault string  `bun:"related_fault"`
	ResolvesTask string  `bun:"resolves_task"`
	Quantity     float64 `bun:"quantity"`
	UnitPrice    float64 `bun:"unit_price"`
	Total        float64 `bun:"total"`
}

func (m lineItemModel) toDomain() domain.LineItem {
	return domain.LineItem{
		ID:           m.ID,
		EstimateID:   m.EstimateID,
		Type:         domain.LineItemType(m.Type),
		ReferenceID:  m.ReferenceID,
		Name:         m.Name,
		RelatedFault: m.RelatedFault,
		ResolvesTask: m.ResolvesTask,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		Total:        m.Total,
	}
}

type partModel struct {
	bun.BaseModel `bun:"table:parts,alias:p"`

	ID          string  `bun:"part_id,pk"`
	Code        string  `bun:"part_code"`
	Description string  `bun:"description"`
	UnitPrice   float64 `bun:"unit_price"`
	Category    string  `bun:"category"`
}

type laborModel struct {
	bun.BaseModel `bun:"table:labor_operations,alias:lo"`

	ID             string  `bun:"labor_id,pk"`
	Name           string  `bun:"name"`
	HourlyRate     float64 `bun:"hourly_rate"`
	EstimatedHours float64 `bun:"estimated_hours"`
}

type faultModel struct {
	bun.BaseModel `bun:"table:fault_codes,alias:fc"`

	Code             string `bun:"fault_code,pk"`
	Description      string `bun:"description"`
	LaborOperationID string `bun:"labor_operation_id"`
	WarrantyEligible bool   `bun:"warranty_eligible"`
}
