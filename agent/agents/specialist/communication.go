package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	toolx "github.com/tanpawarit/autoshop-agent/agent/tool"
)

const defaultTone = "professional"

// Actions that select the question answering sub-mode.
var chatActions = map[string]struct{}{
	"chat":        {},
	"customer_qa": {},
}

type communicationDraft struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
	Tone    string `json:"tone"`
}

type communicationSpecialist struct {
	planner   *toolPlanner
	finalizer *structuredRunner[communicationDraft]
	tools     contractx.ToolGateway
	notifier  contractx.Notifier
}

func newCommunicationSpecialist(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools contractx.ToolGateway,
	notifier contractx.Notifier,
) (*communicationSpecialist, error) {
	planner, err := newToolPlanner(ctx, contractx.CapabilityCommunication, chatModel, toolx.InfosFor(contractx.CapabilityCommunication), systemPrompt)
	if err != nil {
		return nil, err
	}
	finalizer, err := newStructuredRunner[communicationDraft](ctx, chatModel, systemPrompt, "communication.structured_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile communication graph: %v", contractx.ErrModelInvoke, err)
	}
	return &communicationSpecialist{
		planner:   planner,
		finalizer: finalizer,
		tools:     tools,
		notifier:  notifier,
	}, nil
}

func (s *communicationSpecialist) Run(ctx context.Context, req contractx.Request) (json.RawMessage, error) {
	out, err := s.respond(ctx, req)
	if err != nil {
		return nil, err
	}
	out.Agent = contractx.AgentNameCommunication
	out.CustomerID = firstNonEmpty(out.CustomerID, req.CustomerID)
	out.JobCardID = firstNonEmpty(out.JobCardID, req.JobCardID)
	if strings.TrimSpace(out.Tone) == "" {
		out.Tone = defaultTone
	}
	return json.Marshal(out)
}

func (s *communicationSpecialist) respond(ctx context.Context, req contractx.Request) (contractx.CommunicationResult, error) {
	if req.Shape == contractx.ShapeFreeText {
		return s.freeText(ctx, req)
	}

	if _, chat := chatActions[strings.ToLower(req.Action)]; chat {
		if missing := toolx.MissingFields(
			toolx.Field{Name: "customer_id", Value: req.CustomerID},
			toolx.Field{Name: "job_card_id", Value: req.JobCardID},
			toolx.Field{Name: "vehicle_id", Value: req.VehicleID},
			toolx.Field{Name: "question", Value: req.Question},
		); len(missing) > 0 {
			return missingFieldsResult(missing), nil
		}
		return s.answer(ctx, req)
	}

	if missing := toolx.MissingFields(
		toolx.Field{Name: "customer_id", Value: req.CustomerID},
		toolx.Field{Name: "job_card_id", Value: req.JobCardID},
		toolx.Field{Name: "question", Value: req.Question},
	); len(missing) > 0 {
		return missingFieldsResult(missing), nil
	}
	return s.statusUpdate(ctx, req)
}

// answer runs the customer DB tool and returns its answer verbatim.
func (s *communicationSpecialist) answer(ctx context.Context, req contractx.Request) (contractx.CommunicationResult, error) {
	results, err := s.tools.Execute(ctx, contractx.CapabilityCommunication, []contractx.ToolRequest{{
		ID:   "customer-db",
		Tool: toolx.ToolCustomerDB,
		Args: map[string]any{
			"customer_id": req.CustomerID,
			"job_card_id": req.JobCardID,
			"vehicle_id":  req.VehicleID,
			"question":    req.Question,
		},
	}})
	if err != nil {
		return contractx.CommunicationResult{}, err
	}
	answer, ok := customerAnswer(results)
	if !ok {
		return contractx.CommunicationResult{}, fmt.Errorf("%w: customer db tool returned no answer", contractx.ErrSchemaViolation)
	}
	return s.deliver(ctx, contractx.CommunicationResult{Message: answer, Tone: defaultTone}, req), nil
}

func (s *communicationSpecialist) statusUpdate(ctx context.Context, req contractx.Request) (contractx.CommunicationResult, error) {
	results, err := s.tools.Execute(ctx, contractx.CapabilityCommunication, []contractx.ToolRequest{{
		ID:   "job-status",
		Tool: toolx.ToolJobStatus,
		Args: map[string]any{
			"customer_id": req.CustomerID,
			"job_card_id": req.JobCardID,
		},
	}})
	if err != nil {
		return contractx.CommunicationResult{}, err
	}
	out, err := s.finalize(ctx, req, results)
	if err != nil {
		return contractx.CommunicationResult{}, err
	}
	return s.deliver(ctx, out, req), nil
}

// freeText lets the model pick communication tools for an unstructured request.
func (s *communicationSpecialist) freeText(ctx context.Context, req contractx.Request) (contractx.CommunicationResult, error) {
	reqs, err := s.planner.Plan(ctx, map[string]any{
		"mode":  "act",
		"input": req.Input,
	})
	if err != nil {
		return contractx.CommunicationResult{}, err
	}

	var results []contractx.ToolResult
	if len(reqs) > 0 {
		results, err = s.tools.Execute(ctx, contractx.CapabilityCommunication, reqs)
		if err != nil {
			return contractx.CommunicationResult{}, err
		}
		if answer, ok := customerAnswer(results); ok {
			return s.deliver(ctx, contractx.CommunicationResult{Message: answer, Tone: defaultTone}, req), nil
		}
	}

	out, err := s.finalize(ctx, req, results)
	if err != nil {
		return contractx.CommunicationResult{}, err
	}
	return s.deliver(ctx, out, req), nil
}

func (s *communicationSpecialist) finalize(
	ctx context.Context,
	req contractx.Request,
	results []contractx.ToolResult,
) (contractx.CommunicationResult, error) {
	draft, err := s.finalizer.Invoke(ctx, map[string]any{
		"mode":        "finalize",
		"action":      req.Action,
		"customer_id": req.CustomerID,
		"job_card_id": req.JobCardID,
		"vehicle_id":  req.VehicleID,
		"question":    firstNonEmpty(req.Question, req.Input),
		"tool_result": results,
	})
	if err != nil {
		return contractx.CommunicationResult{}, err
	}
	message := strings.TrimSpace(draft.Message)
	if message == "" {
		return contractx.CommunicationResult{}, fmt.Errorf("%w: communication message is empty", contractx.ErrSchemaViolation)
	}
	return contractx.CommunicationResult{Message: message, Tone: strings.TrimSpace(draft.Tone)}, nil
}

// deliver publishes the message when a notifier is configured. Delivery
// failures never fail the request.
func (s *communicationSpecialist) deliver(ctx context.Context, out contractx.CommunicationResult, req contractx.Request) contractx.CommunicationResult {
	if s.notifier == nil {
		return out
	}
	n := contractx.Notification{
		CustomerID: req.CustomerID,
		JobCardID:  req.JobCardID,
		Message:    out.Message,
		Tone:       firstNonEmpty(out.Tone, defaultTone),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		log.Warn().Err(err).
			Str("customer_id", req.CustomerID).
			Str("job_card_id", req.JobCardID).
			Msg("customer notification failed")
	}
	return out
}

func customerAnswer(results []contractx.ToolResult) (string, bool) {
	for _, res := range results {
		if res.Tool != toolx.ToolCustomerDB {
			continue
		}
		if answer, ok := res.Result.(contractx.CustomerDBAnswer); ok && strings.TrimSpace(answer.Answer) != "" {
			return answer.Answer, true
		}
	}
	return "", false
}

func missingFieldsResult(missing []string) contractx.CommunicationResult {
	return contractx.CommunicationResult{
		Message: "Missing required fields: " + strings.Join(missing, ", ") + ".",
		Tone:    defaultTone,
	}
}
