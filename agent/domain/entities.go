package domain

import "time"

type Customer struct {
	ID               string `json:"customer_id"`
	Name             string `json:"name,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	PreferredContact string `json:"preferred_contact,omitempty"`
}

type Vehicle struct {
	ID                 string `json:"vehicle_id"`
	CustomerID         string `json:"customer_id,omitempty"`
	Make               string `json:"make,omitempty"`
	Model              string `json:"model,omitempty"`
	Year               int    `json:"year,omitempty"`
	VIN                string `json:"vin,omitempty"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	Mileage            int    `json:"mileage,omitempty"`
}

// MakeModel renders "Make Model Year" skipping empty parts.
func (v *Vehicle) MakeModel() string {
	if v == nil {
		return ""
	}
	out := v.Make
	if v.Model != "" {
		out = joinNonEmpty(out, v.Model)
	}
	if v.Year > 0 {
		out = joinNonEmpty(out, itoa(v.Year))
	}
	return out
}

// JobCard is the repair ticket for one vehicle visit.
// It is never deleted; closing is a status transition.
type JobCard struct {
	ID             string      `json:"job_card_id"`
	CustomerID     string      `json:"customer_id,omitempty"`
	VehicleID      string      `json:"vehicle_id,omitempty"`
	Complaint      string      `json:"complaint,omitempty"`
	FaultCodes     []string    `json:"obd_fault_codes,omitempty"`
	Tasks          []string    `json:"tasks,omitempty"`
	ServiceType    ServiceType `json:"service_type,omitempty"`
	Status         JobStatus   `json:"status"`
	RiskIndicators []string    `json:"risk_indicators,omitempty"`
	ReportText     string      `json:"obd_report_text,omitempty"`
	ReportSummary  string      `json:"obd_report_summary,omitempty"`
	AdvisorID      string      `json:"advisor_id,omitempty"`
	Mileage        int         `json:"mileage,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

type LineItemType string

const (
	LineItemPart  LineItemType = "part"
	LineItemLabor LineItemType = "labor"
)

// LineItem is one priced entry of an estimate. RelatedFault and ResolvesTask
// are mandatory on every item.
type LineItem struct {
	ID           string       `json:"line_item_id,omitempty"`
	EstimateID   string       `json:"estimate_id,omitempty"`
	Type         LineItemType `json:"type"`
	ReferenceID  string       `json:"reference_id"`
	Name         string       `json:"name"`
	RelatedFault string       `json:"related_fault"`
	ResolvesTask string       `json:"resolves_task"`
	Quantity     float64      `json:"quantity"`
	UnitPrice    float64      `json:"unit_price"`
	Total        float64      `json:"total"`
}

type Estimate struct {
	ID         string         `json:"estimate_id,omitempty"`
	JobCardID  string         `json:"job_card_id,omitempty"`
	VehicleID  string         `json:"vehicle_id,omitempty"`
	Currency   string         `json:"currency"`
	Status     EstimateStatus `json:"status"`
	LineItems  []LineItem     `json:"line_items"`
	PartsTotal float64        `json:"parts_total"`
	LaborTotal float64        `json:"labor_total"`
	Tax        float64        `json:"tax"`
	GrandTotal float64        `json:"grand_total"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type FaultCode struct {
	Code             string `json:"fault_code"`
	Description      string `json:"description,omitempty"`
	LaborOperationID string `json:"labor_operation_id,omitempty"`
	WarrantyEligible bool   `json:"warranty_eligible"`
}

type LaborOperation struct {
	ID             string  `json:"labor_id"`
	Name           string  `json:"name,omitempty"`
	HourlyRate     float64 `json:"hourly_rate"`
	EstimatedHours float64 `json:"estimated_hours"`
}

// Price is hourly_rate x estimated_hours, rounded to cents.
func (l LaborOperation) Price() float64 {
	return Round2(l.HourlyRate * l.EstimatedHours)
}

type Part struct {
	ID          string  `json:"part_id"`
	Code        string  `json:"part_code,omitempty"`
	Description string  `json:"description,omitempty"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
	Category    string  `json:"category,omitempty"`
}
