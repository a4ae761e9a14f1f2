package contract

import (
	"encoding/json"

	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// Capability is one of the four request handlers the router can dispatch to.
type Capability string

const (
	CapabilityIntake        Capability = "intake"
	CapabilityEstimation    Capability = "estimation"
	CapabilityCommunication Capability = "communication"
	CapabilityScheduling    Capability = "scheduling"
)

var Capabilities = []Capability{
	CapabilityIntake,
	CapabilityEstimation,
	CapabilityCommunication,
	CapabilityScheduling,
}

// AgentType selects model settings. Every capability has one, plus the
// grounded answer step.
type AgentType string

const (
	AgentTypeIntake        AgentType = "intake"
	AgentTypeEstimator     AgentType = "estimator"
	AgentTypeCommunication AgentType = "communication"
	AgentTypeScheduling    AgentType = "scheduling"
	AgentTypeGrounded      AgentType = "grounded"
)

// Names reported in capability output.
const (
	AgentNameIntake        = "intake_agent"
	AgentNameEstimator     = "estimator_agent"
	AgentNameCommunication = "communication_agent"
	AgentNameScheduling    = "eta_agent"
)

// MasterRequest is the inbound shape accepted by the orchestration service.
type MasterRequest struct {
	Action            string          `json:"action,omitempty"`
	UserInput         string          `json:"user_input,omitempty"`
	VehicleID         string          `json:"vehicle_id,omitempty"`
	CustomerID        string          `json:"customer_id,omitempty"`
	CustomerComplaint string          `json:"customer_complaint,omitempty"`
	OBDReportText     string          `json:"obd_report_text,omitempty"`
	JobCardID         string          `json:"job_card_id,omitempty"`
	Question          string          `json:"question,omitempty"`
	Context           string          `json:"context,omitempty"`
	JobCard           *JobCardPayload `json:"job_card,omitempty"`
}

// RequestShape records which inbound shape produced a canonical request.
type RequestShape string

const (
	ShapeFreeText      RequestShape = "free_text"
	ShapeJobCard       RequestShape = "job_card"
	ShapeCommunication RequestShape = "communication"
	ShapeFields        RequestShape = "fields"
)

// Request is the canonical payload the router consumes and forwards verbatim.
type Request struct {
	Action     string          `json:"action,omitempty"`
	Shape      RequestShape    `json:"shape"`
	Input      string          `json:"input"`
	VehicleID  string          `json:"vehicle_id,omitempty"`
	CustomerID string          `json:"customer_id,omitempty"`
	Complaint  string          `json:"complaint,omitempty"`
	ReportText string          `json:"obd_report_text,omitempty"`
	JobCardID  string          `json:"job_card_id,omitempty"`
	Question   string          `json:"question,omitempty"`
	Context    string          `json:"context,omitempty"`
	JobCard    *JobCardPayload `json:"job_card,omitempty"`
}

// JobCardPayload is the structured job card handed to estimation.
type JobCardPayload struct {
	JobCardID  string   `json:"job_card_id,omitempty"`
	CustomerID string   `json:"customer_id,omitempty"`
	VehicleID  string   `json:"vehicle_id,omitempty"`
	MakeModel  string   `json:"make_model,omitempty"`
	Complaint  string   `json:"complaint,omitempty"`
	FaultCodes []string `json:"obd_codes,omitempty"`
	Tasks      []string `json:"tasks,omitempty"`
}

type IntakeResult struct {
	Agent          string             `json:"agent"`
	JobCardID      string             `json:"job_card_id,omitempty"`
	VehicleID      string             `json:"vehicle_id,omitempty"`
	CustomerID     string             `json:"customer_id,omitempty"`
	MakeModel      string             `json:"make_model,omitempty"`
	Complaint      string             `json:"complaint"`
	FaultCodes     []string           `json:"obd_codes"`
	ServiceType    domain.ServiceType `json:"service_type"`
	Tasks          []string           `json:"tasks"`
	RiskIndicators []string           `json:"risk_indicators,omitempty"`
	Status         domain.JobStatus   `json:"status,omitempty"`
}

type EstimateResult struct {
	Agent      string                `json:"agent"`
	EstimateID string                `json:"estimate_id,omitempty"`
	JobCardID  string                `json:"job_card_id,omitempty"`
	Currency   string                `json:"currency"`
	Status     domain.EstimateStatus `json:"status"`
	LineItems  []domain.LineItem     `json:"line_items"`
	PartsTotal float64               `json:"parts_total"`
	LaborTotal float64               `json:"labor_total"`
	Tax        float64               `json:"tax"`
	GrandTotal float64               `json:"grand_total"`
}

type CommunicationResult struct {
	Agent      string `json:"agent"`
	CustomerID string `json:"customer_id,omitempty"`
	JobCardID  string `json:"job_card_id,omitempty"`
	Message    string `json:"message"`
	Tone       string `json:"tone"`
}

type ScheduleResult struct {
	Agent         string `json:"agent"`
	JobCardID     string `json:"job_card_id,omitempty"`
	ETA           string `json:"eta"`
	ScheduleNotes string `json:"schedule_notes,omitempty"`
}

// Result is what the router returns: the chosen capability and its raw output.
type Result struct {
	Capability Capability      `json:"capability"`
	Rule       string          `json:"rule"`
	Output     json.RawMessage `json:"output"`
}

// Topic is a coarse category of data relevant to a customer question.
type Topic string

const (
	TopicCustomer          Topic = "customer"
	TopicVehicle           Topic = "vehicle"
	TopicJobCard           Topic = "job_card"
	TopicEstimate          Topic = "estimate"
	TopicEstimateLineItems Topic = "estimate_line_items"

	// Derived topics reported by the customer DB tool.
	TopicParts  Topic = "parts"
	TopicFaults Topic = "faults"
	TopicLabor  Topic = "labor"
)

// AllTopics is the classifier universe, in stable order.
var AllTopics = []Topic{TopicCustomer, TopicVehicle, TopicJobCard, TopicEstimate, TopicEstimateLineItems}

// QuestionAnswerContext is the per-request grounding bag. It is never persisted.
type QuestionAnswerContext struct {
	Question          string                  `json:"question"`
	Customer          *domain.Customer        `json:"customer,omitempty"`
	Vehicle           *domain.Vehicle         `json:"vehicle,omitempty"`
	JobCard           *domain.JobCard         `json:"job_card,omitempty"`
	Estimate          *domain.Estimate        `json:"estimate,omitempty"`
	EstimateLineItems []domain.LineItem       `json:"estimate_line_items,omitempty"`
	Parts             []domain.Part           `json:"parts,omitempty"`
	Faults            []domain.FaultCode      `json:"faults,omitempty"`
	Labor             []domain.LaborOperation `json:"labor,omitempty"`
	MatchedTopics     []Topic                 `json:"matched_topics"`
}

// CustomerDBAnswer is the customer DB tool output.
type CustomerDBAnswer struct {
	Answer   string                `json:"answer"`
	Context  QuestionAnswerContext `json:"context"`
	Decision string                `json:"decision,omitempty"`
}

// LookupResult is the aggregate bag returned by the SQL lookup tool.
type LookupResult struct {
	Vehicle    *domain.Vehicle         `json:"vehicle,omitempty"`
	Customer   *domain.Customer        `json:"customer,omitempty"`
	Parts      []domain.Part           `json:"parts,omitempty"`
	FaultCodes []domain.FaultCode      `json:"fault_codes,omitempty"`
	Labor      []domain.LaborOperation `json:"labor_operations,omitempty"`
}

type JobStatusResult struct {
	JobCardID string           `json:"job_card_id"`
	Status    domain.JobStatus `json:"status"`
}

type ToolRequest struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	ID     string `json:"id,omitempty"`
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Notification is published to customers after a communication is produced.
type Notification struct {
	CustomerID string `json:"customer_id,omitempty"`
	JobCardID  string `json:"job_card_id,omitempty"`
	Message    string `json:"message"`
	Tone       string `json:"tone"`
}
