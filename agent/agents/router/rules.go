package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// Rule names reported with every dispatch.
const (
	RuleAction        = "action"
	RuleVehicleIntake = "vehicle_complaint"
	RuleJobCardCost   = "job_card_cost"
	RuleScheduling    = "scheduling_language"
	RuleCommunication = "communication_language"
	RuleDefault       = "default_intake"
)

var actionTable = map[string]contractx.Capability{
	"intake":        contractx.CapabilityIntake,
	"estimator":     contractx.CapabilityEstimation,
	"estimate":      contractx.CapabilityEstimation,
	"communication": contractx.CapabilityCommunication,
	"chat":          contractx.CapabilityCommunication,
	"customer_qa":   contractx.CapabilityCommunication,
	"send_approval": contractx.CapabilityCommunication,
	"eta":           contractx.CapabilityScheduling,
	"schedule":      contractx.CapabilityScheduling,
}

// CapabilityForAction maps an explicit action tag. Unknown tags are rejected.
func CapabilityForAction(action string) (contractx.Capability, error) {
	c, ok := actionTable[strings.ToLower(strings.TrimSpace(action))]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", contractx.ErrValidation, action)
	}
	return c, nil
}

var (
	registrationPattern = regexp.MustCompile(`(?i)\b[A-Z]{2}[- ]?\d{1,2}[- ]?[A-Z]{1,3}[- ]?\d{3,4}\b`)

	complaintKeywords = keywordMatcher(
		"noise", "problem", "issue", "not working", "won't start", "wont start", "leak", "smoke",
		"vibration", "warning light", "check engine", "misfire", "overheat", "complaint", "obd",
		"diagnostic", "scan", "stalls", "rattle", "squeal", "grinding",
	)
	costKeywords = keywordMatcher(
		"cost", "price", "pricing", "estimate", "quote", "quotation", "how much", "total",
		"charge", "bill", "part", "parts", "labor", "labour",
	)
	schedulingKeywords = keywordMatcher(
		"eta", "when will", "when can", "ready", "schedule", "appointment", "pickup", "pick up",
		"how long", "what time", "deliver", "completion", "tomorrow",
	)
	communicationKeywords = keywordMatcher(
		"message", "notify", "notification", "inform", "tell the customer", "update the customer",
		"send", "sms", "email", "approve", "approved", "approval", "reject", "rejected", "status", "reply", "update",
	)
)

// RegistrationLookup resolves a registration number to a vehicle.
type RegistrationLookup interface {
	GetVehicleByRegistration(ctx context.Context, registration string) (*domain.Vehicle, error)
}

// Route is the dispatch decision for one request.
type Route struct {
	Capability contractx.Capability
	Rule       string
}

// Selector applies the routing rules in priority order.
type Selector struct {
	vehicles RegistrationLookup
}

func NewSelector(vehicles RegistrationLookup) *Selector {
	return &Selector{vehicles: vehicles}
}

// Select returns the single capability for req. An action tag is
// authoritative; otherwise content heuristics apply, defaulting to intake.
func (s *Selector) Select(ctx context.Context, req contractx.Request) (Route, error) {
	if strings.TrimSpace(req.Action) != "" {
		c, err := CapabilityForAction(req.Action)
		if err != nil {
			return Route{}, err
		}
		return Route{Capability: c, Rule: RuleAction}, nil
	}

	text := strings.ToLower(strings.Join([]string{
		req.Input, req.Complaint, req.ReportText, req.Question, req.Context,
	}, " "))

	hasVehicle, err := s.hasVehicleSignal(ctx, req, text)
	if err != nil {
		return Route{}, err
	}
	hasComplaint := strings.TrimSpace(req.Complaint) != "" ||
		strings.TrimSpace(req.ReportText) != "" ||
		len(domain.ExtractFaultCodes(text)) > 0 ||
		complaintKeywords.MatchString(text)
	if hasVehicle && hasComplaint {
		return Route{Capability: contractx.CapabilityIntake, Rule: RuleVehicleIntake}, nil
	}

	hasJobCard := req.JobCard != nil ||
		strings.TrimSpace(req.JobCardID) != "" ||
		domain.ExtractJobCardID(text) != "" ||
		len(domain.ExtractFaultCodes(text)) > 0
	if hasJobCard && costKeywords.MatchString(text) {
		return Route{Capability: contractx.CapabilityEstimation, Rule: RuleJobCardCost}, nil
	}

	if schedulingKeywords.MatchString(text) {
		return Route{Capability: contractx.CapabilityScheduling, Rule: RuleScheduling}, nil
	}
	if communicationKeywords.MatchString(text) {
		return Route{Capability: contractx.CapabilityCommunication, Rule: RuleCommunication}, nil
	}
	return Route{Capability: contractx.CapabilityIntake, Rule: RuleDefault}, nil
}

func (s *Selector) hasVehicleSignal(ctx context.Context, req contractx.Request, text string) (bool, error) {
	if strings.TrimSpace(req.VehicleID) != "" || domain.ExtractVehicleID(text) != "" {
		return true, nil
	}
	if req.JobCard != nil && req.JobCard.VehicleID != "" {
		return true, nil
	}
	if s.vehicles == nil {
		return false, nil
	}
	for _, candidate := range registrationPattern.FindAllString(text, -1) {
		reg := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(candidate))
		v, err := s.vehicles.GetVehicleByRegistration(ctx, reg)
		if err != nil {
			return false, fmt.Errorf("%w: registration lookup: %w", contractx.ErrDataRetrieval, err)
		}
		if v != nil {
			return true, nil
		}
	}
	return false, nil
}

// keywordMatcher matches any of the phrases on word boundaries.
func keywordMatcher(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
