package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
	toolx "github.com/tanpawarit/autoshop-agent/agent/tool"
)

// ValidationTask is ensured on every job card that carries fault codes.
const ValidationTask = "Clear fault codes and validate repair with road test"

type intakeDraft struct {
	VehicleID      string   `json:"vehicle_id"`
	CustomerID     string   `json:"customer_id"`
	MakeModel      string   `json:"make_model"`
	Complaint      string   `json:"complaint"`
	FaultCodes     []string `json:"obd_codes"`
	ServiceType    string   `json:"service_type"`
	Tasks          []string `json:"tasks"`
	RiskIndicators []string `json:"risk_indicators"`
}

type intakeState struct {
	Req       contractx.Request
	Complaint string
	Codes     []string
	Lookup    contractx.LookupResult
	Results   []contractx.ToolResult
	Draft     intakeDraft
}

type intakeSpecialist struct {
	planner   *toolPlanner
	finalizer *structuredRunner[intakeDraft]
	tools     contractx.ToolGateway
	jobs      contractx.JobCardWriter
	now       func() time.Time
	runner    compose.Runnable[contractx.Request, contractx.IntakeResult]
}

func newIntakeSpecialist(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools contractx.ToolGateway,
	jobs contractx.JobCardWriter,
) (*intakeSpecialist, error) {
	planner, err := newToolPlanner(ctx, contractx.CapabilityIntake, chatModel, toolx.InfosFor(contractx.CapabilityIntake), systemPrompt)
	if err != nil {
		return nil, err
	}
	finalizer, err := newStructuredRunner[intakeDraft](ctx, chatModel, systemPrompt, "intake.structured_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile intake structured graph: %v", contractx.ErrModelInvoke, err)
	}

	s := &intakeSpecialist{
		planner:   planner,
		finalizer: finalizer,
		tools:     tools,
		jobs:      jobs,
		now:       time.Now,
	}
	runner, err := s.compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: compile intake runtime graph: %v", contractx.ErrModelInvoke, err)
	}
	s.runner = runner
	return s, nil
}

func (s *intakeSpecialist) Run(ctx context.Context, req contractx.Request) (json.RawMessage, error) {
	out, err := s.runner.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (s *intakeSpecialist) compile(ctx context.Context) (compose.Runnable[contractx.Request, contractx.IntakeResult], error) {
	graph := compose.NewGraph[contractx.Request, contractx.IntakeResult]()

	if err := graph.AddLambdaNode("prepare", compose.InvokableLambda(s.prepare)); err != nil {
		return nil, fmt.Errorf("add intake prepare node: %w", err)
	}
	if err := graph.AddLambdaNode("plan_tools", compose.InvokableLambda(s.planTools)); err != nil {
		return nil, fmt.Errorf("add intake plan node: %w", err)
	}
	if err := graph.AddLambdaNode("finalize", compose.InvokableLambda(s.finalize)); err != nil {
		return nil, fmt.Errorf("add intake finalize node: %w", err)
	}
	if err := graph.AddLambdaNode("reconcile", compose.InvokableLambda(s.reconcile)); err != nil {
		return nil, fmt.Errorf("add intake reconcile node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prepare"},
		{"prepare", "plan_tools"},
		{"plan_tools", "finalize"},
		{"finalize", "reconcile"},
		{"reconcile", compose.END},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add intake edge %s->%s: %w", e[0], e[1], err)
		}
	}

	return graph.Compile(ctx, compose.WithGraphName("intake.runtime_graph"))
}

func (s *intakeSpecialist) prepare(_ context.Context, req contractx.Request) (*intakeState, error) {
	complaint := strings.TrimSpace(req.Complaint)
	if complaint == "" && req.JobCard != nil {
		complaint = strings.TrimSpace(req.JobCard.Complaint)
	}

	sources := []string{req.ReportText, req.Complaint, req.Input}
	var codes []string
	for _, text := range sources {
		codes = append(codes, domain.ExtractFaultCodes(text)...)
	}
	if req.JobCard != nil {
		codes = append(codes, req.JobCard.FaultCodes...)
		if req.VehicleID == "" {
			req.VehicleID = req.JobCard.VehicleID
		}
		if req.CustomerID == "" {
			req.CustomerID = req.JobCard.CustomerID
		}
	}

	if complaint == "" && strings.TrimSpace(req.ReportText) == "" && strings.TrimSpace(req.Input) == "" && len(codes) == 0 {
		return nil, fmt.Errorf("%w: intake needs a complaint, a diagnostic report or free text", contractx.ErrValidation)
	}

	return &intakeState{
		Req:       req,
		Complaint: complaint,
		Codes:     domain.NormalizeFaultCodes(codes),
	}, nil
}

func (s *intakeSpecialist) planTools(ctx context.Context, st *intakeState) (*intakeState, error) {
	reqs, err := s.planner.Plan(ctx, map[string]any{
		"mode":      "act",
		"request":   st.Req,
		"obd_codes": st.Codes,
	})
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 && (st.Req.VehicleID != "" || st.Req.CustomerID != "" || len(st.Codes) > 0) {
		reqs = []contractx.ToolRequest{{
			ID:   "intake-lookup",
			Tool: toolx.ToolSQLLookup,
			Args: lookupArgs(st.Req.VehicleID, st.Req.CustomerID, nil, st.Codes),
		}}
	}
	if len(reqs) == 0 {
		return st, nil
	}

	results, err := s.tools.Execute(ctx, contractx.CapabilityIntake, reqs)
	if err != nil {
		return nil, err
	}
	st.Results = results
	st.Lookup = mergeLookups(results)
	return st, nil
}

func (s *intakeSpecialist) finalize(ctx context.Context, st *intakeState) (*intakeState, error) {
	draft, err := s.finalizer.Invoke(ctx, map[string]any{
		"mode":         "finalize",
		"request":      st.Req,
		"obd_codes":    st.Codes,
		"tool_results": st.Results,
	})
	if err != nil {
		return nil, err
	}
	st.Draft = draft
	return st, nil
}

func (s *intakeSpecialist) reconcile(ctx context.Context, st *intakeState) (contractx.IntakeResult, error) {
	draft := st.Draft

	modelCodes := domain.ExtractFaultCodes(strings.Join(draft.FaultCodes, " "))
	codes := domain.NormalizeFaultCodes(append(append([]string{}, st.Codes...), modelCodes...))

	serviceType, err := resolveServiceType(draft.ServiceType, codes)
	if err != nil {
		return contractx.IntakeResult{}, err
	}

	complaint := firstNonEmpty(st.Complaint, strings.TrimSpace(draft.Complaint), strings.TrimSpace(st.Req.Input))
	tasks := reconcileTasks(draft.Tasks, codes, complaint)
	if len(tasks) == 0 {
		return contractx.IntakeResult{}, fmt.Errorf("%w: intake produced no tasks", contractx.ErrSchemaViolation)
	}

	vehicle, err := s.resolveVehicle(ctx, st, strings.TrimSpace(draft.VehicleID))
	if err != nil {
		return contractx.IntakeResult{}, err
	}

	out := contractx.IntakeResult{
		Agent:          contractx.AgentNameIntake,
		VehicleID:      firstNonEmpty(st.Req.VehicleID, strings.TrimSpace(draft.VehicleID)),
		CustomerID:     st.Req.CustomerID,
		MakeModel:      strings.TrimSpace(draft.MakeModel),
		Complaint:      complaint,
		FaultCodes:     codes,
		ServiceType:    serviceType,
		Tasks:          tasks,
		RiskIndicators: dedupeTrimmed(draft.RiskIndicators),
	}
	if st.Lookup.Customer != nil && out.CustomerID == "" {
		out.CustomerID = st.Lookup.Customer.ID
	}
	if vehicle == nil {
		if out.CustomerID == "" {
			out.CustomerID = strings.TrimSpace(draft.CustomerID)
		}
		return out, nil
	}

	out.VehicleID = vehicle.ID
	out.MakeModel = firstNonEmpty(vehicle.MakeModel(), out.MakeModel)
	out.CustomerID = firstNonEmpty(out.CustomerID, vehicle.CustomerID)

	card := &domain.JobCard{
		CustomerID:     out.CustomerID,
		VehicleID:      vehicle.ID,
		Complaint:      complaint,
		FaultCodes:     codes,
		Tasks:          tasks,
		ServiceType:    serviceType,
		Status:         domain.JobDraft,
		RiskIndicators: out.RiskIndicators,
		ReportText:     st.Req.ReportText,
		Mileage:        vehicle.Mileage,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.jobs.SaveDraftJobCard(ctx, card); err != nil {
		return contractx.IntakeResult{}, fmt.Errorf("%w: save job card: %w", contractx.ErrDataRetrieval, err)
	}
	log.Info().
		Str("job_card_id", card.ID).
		Str("vehicle_id", card.VehicleID).
		Str("service_type", string(card.ServiceType)).
		Msg("draft job card saved")

	out.JobCardID = card.ID
	out.Status = card.Status
	return out, nil
}

// resolveVehicle returns the vehicle named by the request or the model, but
// only when the store knows it.
func (s *intakeSpecialist) resolveVehicle(ctx context.Context, st *intakeState, draftVehicleID string) (*domain.Vehicle, error) {
	id := firstNonEmpty(st.Req.VehicleID, draftVehicleID)
	if v := st.Lookup.Vehicle; v != nil && (id == "" || v.ID == id) {
		return v, nil
	}
	if id == "" {
		return nil, nil
	}
	lookup, err := runLookup(ctx, s.tools, contractx.CapabilityIntake, lookupArgs(id, "", nil, nil))
	if err != nil {
		return nil, err
	}
	return lookup.Vehicle, nil
}

func resolveServiceType(raw string, codes []string) (domain.ServiceType, error) {
	if strings.TrimSpace(raw) == "" {
		if len(codes) > 0 {
			return domain.ServiceDiagnostic, nil
		}
		return domain.ServiceRepair, nil
	}
	st, ok := domain.ParseServiceType(raw)
	if !ok {
		return "", fmt.Errorf("%w: unknown service_type %q", contractx.ErrSchemaViolation, raw)
	}
	return st, nil
}

func reconcileTasks(raw []string, codes []string, complaint string) []string {
	tasks := dedupeTrimmed(raw)
	if len(tasks) == 0 && complaint != "" {
		tasks = append(tasks, "Inspect and diagnose: "+complaint)
	}
	if len(codes) == 0 {
		return tasks
	}
	for _, t := range tasks {
		if strings.EqualFold(t, ValidationTask) {
			return tasks
		}
	}
	return append(tasks, ValidationTask)
}

func dedupeTrimmed(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
