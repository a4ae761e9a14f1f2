package contract

import (
	"context"
	"encoding/json"

	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// Specialist runs one capability and returns its raw structured output.
type Specialist interface {
	Run(ctx context.Context, req Request) (json.RawMessage, error)
}

type Registry interface {
	Intake() Specialist
	Estimator() Specialist
	Communication() Specialist
	Scheduling() Specialist
}

// KnowledgeGateway resolves identifiers into records. Absent records come
// back as nil or empty without an error.
type KnowledgeGateway interface {
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	GetVehicleByRegistration(ctx context.Context, registration string) (*domain.Vehicle, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetJobCard(ctx context.Context, id string) (*domain.JobCard, error)
	GetEstimateForJob(ctx context.Context, jobCardID string) (*domain.Estimate, error)
	GetEstimateLineItems(ctx context.Context, estimateID string) ([]domain.LineItem, error)
	GetParts(ctx context.Context, ids []string) ([]domain.Part, error)
	GetLaborOperations(ctx context.Context, ids []string) ([]domain.LaborOperation, error)
	GetFaultCodes(ctx context.Context, codes []string) ([]domain.FaultCode, error)
	UpdateJobCardStatus(ctx context.Context, id string, status domain.JobStatus) error
}

// JobCardWriter keeps one open draft job card per vehicle and complaint.
type JobCardWriter interface {
	SaveDraftJobCard(ctx context.Context, card *domain.JobCard) error
}

// EstimateWriter keeps at most one live estimate per job card.
type EstimateWriter interface {
	UpsertEstimate(ctx context.Context, est *domain.Estimate) error
	GetEstimate(ctx context.Context, id string) (*domain.Estimate, error)
	UpdateEstimateStatus(ctx context.Context, id string, status domain.EstimateStatus) error
}

type KnowledgeStore interface {
	KnowledgeGateway
	JobCardWriter
	EstimateWriter
}

// GroundedAnswerer answers a question using only the supplied context.
type GroundedAnswerer interface {
	Answer(ctx context.Context, question string, qa QuestionAnswerContext) (string, error)
}

type ToolGateway interface {
	Execute(ctx context.Context, capability Capability, reqs []ToolRequest) ([]ToolResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
