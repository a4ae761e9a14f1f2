package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
)

// CustomerChatTool assembles a question context from the classified topics
// only. It performs no reasoning and no writes.
type CustomerChatTool struct {
	gateway    contractx.KnowledgeGateway
	classifier TopicClassifier
}

func NewCustomerChatTool(gateway contractx.KnowledgeGateway, classifier TopicClassifier) *CustomerChatTool {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &CustomerChatTool{gateway: gateway, classifier: classifier}
}

func (t *CustomerChatTool) Run(ctx context.Context, req CustomerDBRequest) (contractx.QuestionAnswerContext, error) {
	if missing := MissingFields(
		Field{"customer_id", req.CustomerID},
		Field{"job_card_id", req.JobCardID},
		Field{"vehicle_id", req.VehicleID},
		Field{"question", req.Question},
	); len(missing) > 0 {
		return contractx.QuestionAnswerContext{}, fmt.Errorf(
			"%w: customer_chat_tool requires customer_id, job_card_id, vehicle_id and question (missing %s)",
			contractx.ErrValidation, strings.Join(missing, ", "),
		)
	}

	topics := t.classifier.Classify(req.Question)
	qa, err := t.collect(ctx, req, topics)
	if err != nil {
		return contractx.QuestionAnswerContext{}, fmt.Errorf("%w: customer chat data: %w", contractx.ErrDataRetrieval, err)
	}
	return qa, nil
}

func (t *CustomerChatTool) collect(ctx context.Context, req CustomerDBRequest, topics []contractx.Topic) (contractx.QuestionAnswerContext, error) {
	qa := contractx.QuestionAnswerContext{Question: req.Question, MatchedTopics: topics}
	var err error

	if hasTopic(topics, contractx.TopicCustomer) {
		if qa.Customer, err = t.gateway.GetCustomer(ctx, req.CustomerID); err != nil {
			return qa, err
		}
	}
	if hasTopic(topics, contractx.TopicVehicle) {
		if qa.Vehicle, err = t.gateway.GetVehicle(ctx, req.VehicleID); err != nil {
			return qa, err
		}
	}
	if hasTopic(topics, contractx.TopicJobCard) {
		if qa.JobCard, err = t.gateway.GetJobCard(ctx, req.JobCardID); err != nil {
			return qa, err
		}
	}
	if !hasTopic(topics, contractx.TopicEstimate) {
		return qa, nil
	}
	if qa.Estimate, err = t.gateway.GetEstimateForJob(ctx, req.JobCardID); err != nil {
		return qa, err
	}
	if qa.Estimate != nil && qa.Estimate.ID != "" && hasTopic(topics, contractx.TopicEstimateLineItems) {
		if qa.EstimateLineItems, err = t.gateway.GetEstimateLineItems(ctx, qa.Estimate.ID); err != nil {
			return qa, err
		}
	}
	return qa, nil
}
