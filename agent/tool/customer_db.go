package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
	metricsx "github.com/tanpawarit/autoshop-agent/pkg/metrics"
)

const (
	AnswerNoInformation  = "I don't have that information in the provided records."
	AnswerDecisionStored = "Thanks. Your decision has been recorded."
	AnswerPendingPrompt  = "Your job is pending approval. Please reply with 'approve' or 'reject'."
)

// customerDBTopics is what the customer DB tool always reports: it loads
// the full aggregate regardless of the question.
var customerDBTopics = []contractx.Topic{
	contractx.TopicCustomer,
	contractx.TopicVehicle,
	contractx.TopicParts,
	contractx.TopicFaults,
	contractx.TopicLabor,
	contractx.TopicJobCard,
	contractx.TopicEstimate,
	contractx.TopicEstimateLineItems,
}

type CustomerDBRequest struct {
	CustomerID string `json:"customer_id"`
	JobCardID  string `json:"job_card_id"`
	VehicleID  string `json:"vehicle_id"`
	Question   string `json:"question"`
}

// CustomerDBTool answers a customer question from their own records. It is
// read-only except for one job card status write: a pending approval owned by
// the caller, with an unambiguous decision in the question.
type CustomerDBTool struct {
	gateway   contractx.KnowledgeGateway
	answerer  contractx.GroundedAnswerer
	approvals ApprovalExtractor
}

func NewCustomerDBTool(gateway contractx.KnowledgeGateway, answerer contractx.GroundedAnswerer, approvals ApprovalExtractor) *CustomerDBTool {
	if approvals == nil {
		approvals = NewKeywordApprovalExtractor()
	}
	return &CustomerDBTool{gateway: gateway, answerer: answerer, approvals: approvals}
}

// Intent is the pure classification step of an approval request.
type Intent struct {
	Decision Decision
}

func (t *CustomerDBTool) Classify(question string) Intent {
	return Intent{Decision: t.approvals.Extract(question)}
}

// OwnsJobCard reports whether customerID may act on the card. A card with no
// recorded owner is treated as owned.
func OwnsJobCard(card *domain.JobCard, customerID string) bool {
	if card == nil {
		return true
	}
	return ownedBy(card.CustomerID, customerID)
}

func ownedBy(owner, customerID string) bool {
	owner = strings.TrimSpace(owner)
	return owner == "" || owner == strings.TrimSpace(customerID)
}

// scrubForeign keeps only records owned by customerID. A foreign job card
// takes its estimate and faults with it since none of them are loaded.
func scrubForeign(qa *contractx.QuestionAnswerContext, customerID string) {
	qa.JobCard = nil
	if qa.Vehicle != nil && !ownedBy(qa.Vehicle.CustomerID, customerID) {
		qa.Vehicle = nil
	}
}

// AwaitingDecision is the eligibility gate for the approval write.
func AwaitingDecision(card *domain.JobCard, customerID string) bool {
	return card != nil && card.Status == domain.JobPendingApproval && OwnsJobCard(card, customerID)
}

func (t *CustomerDBTool) Run(ctx context.Context, req CustomerDBRequest) (contractx.CustomerDBAnswer, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return contractx.CustomerDBAnswer{
			Answer: AnswerNoInformation,
			Context: contractx.QuestionAnswerContext{
				Question:      req.Question,
				MatchedTopics: []contractx.Topic{},
			},
		}, nil
	}
	if missing := MissingFields(
		Field{"job_card_id", req.JobCardID},
		Field{"vehicle_id", req.VehicleID},
		Field{"question", req.Question},
	); len(missing) > 0 {
		return contractx.CustomerDBAnswer{}, fmt.Errorf(
			"%w: customer_db_tool requires customer_id, job_card_id, vehicle_id and question (missing %s)",
			contractx.ErrValidation, strings.Join(missing, ", "),
		)
	}

	intent := t.Classify(req.Question)
	qa, awaiting, committed, err := t.load(ctx, req, intent)
	if err != nil {
		return contractx.CustomerDBAnswer{}, fmt.Errorf("%w: customer chat data: %w", contractx.ErrDataRetrieval, err)
	}

	switch {
	case committed:
		return contractx.CustomerDBAnswer{Answer: AnswerDecisionStored, Context: qa, Decision: string(intent.Decision)}, nil
	case awaiting:
		return contractx.CustomerDBAnswer{Answer: AnswerPendingPrompt, Context: qa}, nil
	}

	answer, err := t.answerer.Answer(ctx, req.Question, qa)
	if err != nil {
		return contractx.CustomerDBAnswer{}, err
	}
	return contractx.CustomerDBAnswer{Answer: answer, Context: qa}, nil
}

func (t *CustomerDBTool) load(ctx context.Context, req CustomerDBRequest, intent Intent) (contractx.QuestionAnswerContext, bool, bool, error) {
	qa := contractx.QuestionAnswerContext{
		Question:      req.Question,
		MatchedTopics: customerDBTopics,
	}

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		c, err := t.gateway.GetCustomer(ctx, req.CustomerID)
		qa.Customer = c
		return err
	})
	p.Go(func(ctx context.Context) error {
		v, err := t.gateway.GetVehicle(ctx, req.VehicleID)
		qa.Vehicle = v
		return err
	})
	p.Go(func(ctx context.Context) error {
		j, err := t.gateway.GetJobCard(ctx, req.JobCardID)
		qa.JobCard = j
		return err
	})
	if err := p.Wait(); err != nil {
		return qa, false, false, err
	}

	if !OwnsJobCard(qa.JobCard, req.CustomerID) {
		log.Warn().
			Str("job_card_id", req.JobCardID).
			Str("customer_id", req.CustomerID).
			Msg("job card belongs to another customer")
		scrubForeign(&qa, req.CustomerID)
		return qa, false, false, nil
	}
	if qa.Vehicle != nil && !ownedBy(qa.Vehicle.CustomerID, req.CustomerID) {
		qa.Vehicle = nil
	}

	awaiting := AwaitingDecision(qa.JobCard, req.CustomerID)
	committed := false
	if awaiting && intent.Decision != DecisionNone {
		status := intent.Decision.JobStatus()
		if err := t.gateway.UpdateJobCardStatus(ctx, req.JobCardID, status); err != nil {
			return qa, false, false, err
		}
		qa.JobCard.Status = status
		committed = true
		metricsx.RecordApproval(string(intent.Decision))
		log.Info().
			Str("job_card_id", req.JobCardID).
			Str("customer_id", req.CustomerID).
			Str("decision", string(intent.Decision)).
			Msg("approval decision recorded")
	}

	if err := t.attachEstimate(ctx, &qa, req.JobCardID); err != nil {
		return qa, false, false, err
	}

	if qa.JobCard != nil && len(qa.JobCard.FaultCodes) > 0 {
		faults, err := t.gateway.GetFaultCodes(ctx, qa.JobCard.FaultCodes)
		if err != nil {
			return qa, false, false, err
		}
		qa.Faults = faults
	}
	return qa, awaiting, committed, nil
}

// attachEstimate loads the estimate, its line items and the parts and labor
// records those line items reference.
func (t *CustomerDBTool) attachEstimate(ctx context.Context, qa *contractx.QuestionAnswerContext, jobCardID string) error {
	est, err := t.gateway.GetEstimateForJob(ctx, jobCardID)
	if err != nil {
		return err
	}
	qa.Estimate = est
	if est == nil || est.ID == "" {
		return nil
	}

	items, err := t.gateway.GetEstimateLineItems(ctx, est.ID)
	if err != nil {
		return err
	}
	qa.EstimateLineItems = items

	var partIDs, laborIDs []string
	for _, item := range items {
		if item.ReferenceID == "" {
			continue
		}
		switch domain.LineItemType(strings.ToLower(string(item.Type))) {
		case domain.LineItemPart:
			partIDs = append(partIDs, item.ReferenceID)
		case domain.LineItemLabor:
			laborIDs = append(laborIDs, item.ReferenceID)
		}
	}
	if len(partIDs) > 0 {
		if qa.Parts, err = t.gateway.GetParts(ctx, partIDs); err != nil {
			return err
		}
	}
	if len(laborIDs) > 0 {
		if qa.Labor, err = t.gateway.GetLaborOperations(ctx, laborIDs); err != nil {
			return err
		}
	}
	return nil
}

// Field is a named request value checked for presence.
type Field struct {
	Name  string
	Value string
}

// MissingFields returns the names of blank fields in argument order.
func MissingFields(fields ...Field) []string {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
