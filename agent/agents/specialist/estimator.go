package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

type partProposal struct {
	PartCode     string  `json:"part_code"`
	Quantity     float64 `json:"quantity"`
	RelatedFault string  `json:"related_fault"`
	ResolvesTask string  `json:"resolves_task"`
}

type estimatorDraft struct {
	Parts []partProposal `json:"parts"`
}

// estimatorSpecialist prices a job card. Labor comes straight from the
// catalog; the model only proposes parts, which are kept when the catalog
// resolves them.
type estimatorSpecialist struct {
	proposer  *structuredRunner[estimatorDraft]
	tools     contractx.ToolGateway
	gateway   contractx.KnowledgeGateway
	estimates contractx.EstimateWriter
	currency  string
	taxRate   float64
	now       func() time.Time
}

func newEstimatorSpecialist(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	tools contractx.ToolGateway,
	store contractx.KnowledgeStore,
	currency string,
	taxRate float64,
) (*estimatorSpecialist, error) {
	proposer, err := newStructuredRunner[estimatorDraft](ctx, chatModel, systemPrompt, "estimator.structured_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile estimator graph: %v", contractx.ErrModelInvoke, err)
	}
	return &estimatorSpecialist{
		proposer:  proposer,
		tools:     tools,
		gateway:   store,
		estimates: store,
		currency:  currency,
		taxRate:   taxRate,
		now:       time.Now,
	}, nil
}

func (s *estimatorSpecialist) Run(ctx context.Context, req contractx.Request) (json.RawMessage, error) {
	card, err := s.jobCard(ctx, req)
	if err != nil {
		return nil, err
	}
	codes := domain.NormalizeFaultCodes(card.FaultCodes)

	var lookup contractx.LookupResult
	if len(codes) > 0 || card.VehicleID != "" {
		lookup, err = runLookup(ctx, s.tools, contractx.CapabilityEstimation, lookupArgs(card.VehicleID, "", nil, codes))
		if err != nil {
			return nil, err
		}
	}

	items := laborItems(card, codes, lookup)
	if len(items) > 0 {
		parts, err := s.partItems(ctx, card, codes, lookup)
		if err != nil {
			return nil, err
		}
		items = append(items, parts...)
	}

	now := s.now().UTC()
	est := &domain.Estimate{
		JobCardID: card.JobCardID,
		VehicleID: card.VehicleID,
		Currency:  s.currency,
		Status:    domain.EstimatePendingApproval,
		LineItems: items,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if est.LineItems == nil {
		est.LineItems = []domain.LineItem{}
	}
	est.Recalculate(s.taxRate)

	if est.JobCardID != "" {
		if err := s.estimates.UpsertEstimate(ctx, est); err != nil {
			return nil, fmt.Errorf("%w: save estimate: %w", contractx.ErrDataRetrieval, err)
		}
		log.Info().
			Str("estimate_id", est.ID).
			Str("job_card_id", est.JobCardID).
			Str("status", string(est.Status)).
			Int("line_items", len(est.LineItems)).
			Float64("grand_total", est.GrandTotal).
			Msg("estimate saved")
	}

	return json.Marshal(contractx.EstimateResult{
		Agent:      contractx.AgentNameEstimator,
		EstimateID: est.ID,
		JobCardID:  est.JobCardID,
		Currency:   est.Currency,
		Status:     est.Status,
		LineItems:  est.LineItems,
		PartsTotal: est.PartsTotal,
		LaborTotal: est.LaborTotal,
		Tax:        est.Tax,
		GrandTotal: est.GrandTotal,
	})
}

// jobCard resolves the job card to price: the structured payload, then the
// stored card (by id field or an id named in the text), then fault codes
// found in free text.
func (s *estimatorSpecialist) jobCard(ctx context.Context, req contractx.Request) (contractx.JobCardPayload, error) {
	if req.JobCard != nil {
		card := *req.JobCard
		card.JobCardID = firstNonEmpty(card.JobCardID, req.JobCardID)
		card.VehicleID = firstNonEmpty(card.VehicleID, req.VehicleID)
		card.CustomerID = firstNonEmpty(card.CustomerID, req.CustomerID)
		return card, nil
	}

	id := firstNonEmpty(strings.TrimSpace(req.JobCardID), domain.ExtractJobCardID(req.Input))
	if id != "" {
		stored, err := s.gateway.GetJobCard(ctx, id)
		if err != nil {
			return contractx.JobCardPayload{}, fmt.Errorf("%w: job card %s: %w", contractx.ErrDataRetrieval, id, err)
		}
		if stored == nil {
			return contractx.JobCardPayload{}, fmt.Errorf("%w: job card %s does not exist", contractx.ErrValidation, id)
		}
		return contractx.JobCardPayload{
			JobCardID:  stored.ID,
			CustomerID: stored.CustomerID,
			VehicleID:  stored.VehicleID,
			Complaint:  stored.Complaint,
			FaultCodes: stored.FaultCodes,
			Tasks:      stored.Tasks,
		}, nil
	}

	text := strings.Join([]string{req.Complaint, req.ReportText, req.Input}, " ")
	if codes := domain.ExtractFaultCodes(text); len(codes) > 0 {
		return contractx.JobCardPayload{
			CustomerID: req.CustomerID,
			VehicleID:  req.VehicleID,
			Complaint:  firstNonEmpty(strings.TrimSpace(req.Complaint), strings.TrimSpace(req.Input)),
			FaultCodes: codes,
		}, nil
	}
	return contractx.JobCardPayload{}, fmt.Errorf("%w: estimation needs a job card or fault codes", contractx.ErrValidation)
}

// laborItems emits one labor line per fault code whose labor operation
// resolves, in job card order.
func laborItems(card contractx.JobCardPayload, codes []string, lookup contractx.LookupResult) []domain.LineItem {
	faults := make(map[string]domain.FaultCode, len(lookup.FaultCodes))
	for _, f := range lookup.FaultCodes {
		faults[domain.NormalizeFaultCode(f.Code)] = f
	}
	ops := laborByID(lookup.Labor)

	var items []domain.LineItem
	for _, code := range codes {
		fault, ok := faults[code]
		if !ok || fault.LaborOperationID == "" {
			continue
		}
		op, ok := ops[fault.LaborOperationID]
		if !ok {
			continue
		}
		items = append(items, domain.LineItem{
			Type:         domain.LineItemLabor,
			ReferenceID:  op.ID,
			Name:         op.Name,
			RelatedFault: code,
			ResolvesTask: matchTask(code, fault.Description, card),
			Quantity:     1,
			UnitPrice:    op.Price(),
		})
	}
	return items
}

func (s *estimatorSpecialist) partItems(
	ctx context.Context,
	card contractx.JobCardPayload,
	codes []string,
	lookup contractx.LookupResult,
) ([]domain.LineItem, error) {
	draft, err := s.proposer.Invoke(ctx, map[string]any{
		"job_card":         card,
		"fault_codes":      lookup.FaultCodes,
		"labor_operations": lookup.Labor,
	})
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		known[c] = struct{}{}
	}

	var proposals []partProposal
	var partCodes []string
	for _, p := range draft.Parts {
		p.PartCode = strings.TrimSpace(p.PartCode)
		p.RelatedFault = domain.NormalizeFaultCode(p.RelatedFault)
		if _, ok := known[p.RelatedFault]; !ok || p.PartCode == "" || p.Quantity <= 0 {
			continue
		}
		proposals = append(proposals, p)
		partCodes = append(partCodes, p.PartCode)
	}
	if len(proposals) == 0 {
		return nil, nil
	}

	resolved, err := runLookup(ctx, s.tools, contractx.CapabilityEstimation, lookupArgs("", "", partCodes, nil))
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]domain.Part, len(resolved.Parts)*2)
	for _, part := range resolved.Parts {
		catalog[part.ID] = part
		if part.Code != "" {
			catalog[part.Code] = part
		}
	}
	descriptions := make(map[string]string, len(lookup.FaultCodes))
	for _, f := range lookup.FaultCodes {
		descriptions[domain.NormalizeFaultCode(f.Code)] = f.Description
	}

	var items []domain.LineItem
	seen := map[string]struct{}{}
	for _, p := range proposals {
		part, ok := catalog[p.PartCode]
		if !ok {
			log.Debug().Str("part_code", p.PartCode).Msg("dropping unresolved part proposal")
			continue
		}
		key := part.ID + "|" + p.RelatedFault
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		task := strings.TrimSpace(p.ResolvesTask)
		if !containsTask(card.Tasks, task) {
			task = matchTask(p.RelatedFault, descriptions[p.RelatedFault], card)
		}
		items = append(items, domain.LineItem{
			Type:         domain.LineItemPart,
			ReferenceID:  part.ID,
			Name:         firstNonEmpty(part.Description, part.Code, part.ID),
			RelatedFault: p.RelatedFault,
			ResolvesTask: task,
			Quantity:     p.Quantity,
			UnitPrice:    part.UnitPrice,
		})
	}
	return items, nil
}

// matchTask picks the job card task a line item resolves: a task naming the
// fault code, else the task sharing most words with the fault description
// and complaint, else the first task. Without tasks it falls back to the
// complaint.
func matchTask(code, description string, card contractx.JobCardPayload) string {
	for _, task := range card.Tasks {
		if strings.Contains(strings.ToUpper(task), code) {
			return task
		}
	}

	wanted := wordSet(description + " " + card.Complaint)
	best, bestScore := "", 0
	for _, task := range card.Tasks {
		score := 0
		for w := range wordSet(task) {
			if _, ok := wanted[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = task, score
		}
	}
	if best != "" {
		return best
	}
	if len(card.Tasks) > 0 {
		return card.Tasks[0]
	}
	if c := strings.TrimSpace(card.Complaint); c != "" {
		return c
	}
	return "Resolve fault " + code
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {}, "when": {}, "this": {}, "that": {},
}

func wordSet(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func containsTask(tasks []string, task string) bool {
	if task == "" {
		return false
	}
	for _, t := range tasks {
		if t == task {
			return true
		}
	}
	return false
}
