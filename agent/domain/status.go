package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type JobStatus string

const (
	JobDraft           JobStatus = "draft"
	JobPendingApproval JobStatus = "pending_approval"
	JobInProgress      JobStatus = "in_progress"
	JobCompleted       JobStatus = "completed"
	JobClosed          JobStatus = "closed"

	// Decision statuses written by the customer approval flow.
	JobApproved JobStatus = "approved"
	JobRejected JobStatus = "rejected"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobDraft, JobPendingApproval, JobInProgress, JobCompleted, JobClosed, JobApproved, JobRejected:
		return true
	default:
		return false
	}
}

func ParseJobStatus(raw string) (JobStatus, error) {
	s := JobStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown job status %q", raw)
	}
	return s, nil
}

type EstimateStatus string

const (
	EstimatePendingApproval EstimateStatus = "pending_approval"
	EstimateApproved        EstimateStatus = "approved"
	EstimateRejected        EstimateStatus = "rejected"
	EstimateRevised         EstimateStatus = "revised"
)

var estimateTransitions = map[EstimateStatus][]EstimateStatus{
	EstimatePendingApproval: {EstimateApproved, EstimateRejected, EstimateRevised},
	EstimateRevised:         {EstimateApproved, EstimateRejected, EstimateRevised},
	EstimateApproved:        {EstimateRevised},
	EstimateRejected:        {EstimateRevised},
}

func (s EstimateStatus) Valid() bool {
	_, ok := estimateTransitions[s]
	return ok
}

// TransitionEstimate checks that from -> to is an allowed estimate transition.
func TransitionEstimate(from, to EstimateStatus) error {
	for _, next := range estimateTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: estimate %s -> %s", ErrInvalidTransition, from, to)
}

// RecreatedStatus is the status an estimate keeps when it is regenerated in
// place for the same job card.
func RecreatedStatus(prev EstimateStatus) EstimateStatus {
	switch prev {
	case EstimateApproved, EstimateRejected, EstimateRevised:
		return EstimateRevised
	default:
		return EstimatePendingApproval
	}
}

type ServiceType string

const (
	ServiceDiagnostic  ServiceType = "diagnostic"
	ServiceRepair      ServiceType = "repair"
	ServiceMaintenance ServiceType = "maintenance"
	ServiceInspection  ServiceType = "inspection"
	ServiceWarranty    ServiceType = "warranty"
)

var ServiceTypes = []ServiceType{ServiceDiagnostic, ServiceRepair, ServiceMaintenance, ServiceInspection, ServiceWarranty}

func ParseServiceType(raw string) (ServiceType, bool) {
	s := ServiceType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range ServiceTypes {
		if s == known {
			return s, true
		}
	}
	return "", false
}
