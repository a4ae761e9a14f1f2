package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// Executor runs one canonical master request.
type Executor interface {
	Execute(ctx context.Context, in contractx.MasterRequest) (contractx.Result, error)
}

// EstimateActions drives the estimate lifecycle.
type EstimateActions interface {
	ApproveEstimate(ctx context.Context, id string) (*domain.Estimate, error)
	RejectEstimate(ctx context.Context, id string) (*domain.Estimate, error)
	ReviseEstimate(ctx context.Context, id string) (*domain.Estimate, error)
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Status string    `json:"status,omitempty"`
	Error  ErrorBody `json:"error"`
}

// upstreamErrors maps pipeline failures to distinguishable codes. Order matters:
// the first sentinel found in the chain wins.
var upstreamErrors = []struct {
	err  error
	code string
}{
	{contractx.ErrGroundingViolation, "grounding_violation"},
	{contractx.ErrSchemaViolation, "schema_violation"},
	{contractx.ErrToolNotAllowed, "tool_not_allowed"},
	{contractx.ErrDataRetrieval, "data_retrieval_failed"},
	{contractx.ErrModelInvoke, "model_invoke_failed"},
	{contractx.ErrPromptMissing, "prompt_missing"},
}

type Handler struct {
	executor  Executor
	estimates EstimateActions
}

func NewHandler(executor Executor, estimates EstimateActions) *Handler {
	return &Handler{executor: executor, estimates: estimates}
}

// NewEngine registers every route on a fresh gin engine.
func NewEngine(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.Register(r)
	return r
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/agents/master", h.Master)
	v1.POST("/estimates/:id/approve", h.ApproveEstimate)
	v1.POST("/estimates/:id/reject", h.RejectEstimate)
	v1.POST("/estimates/:id/revise", h.ReviseEstimate)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Master returns the selected capability's output without re-encoding it.
func (h *Handler) Master(c *gin.Context) {
	var in contractx.MasterRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusOK, rejected("invalid request body"))
		return
	}

	res, err := h.executor.Execute(c.Request.Context(), in)
	if err != nil {
		status, body := mapPipelineError(err)
		log.Error().Err(err).Str("action", in.Action).Int("status", status).Msg("master request failed")
		c.JSON(status, body)
		return
	}
	c.Data(http.StatusOK, "application/json", res.Output)
}

func (h *Handler) ApproveEstimate(c *gin.Context) {
	h.transition(c, h.estimates.ApproveEstimate)
}

func (h *Handler) RejectEstimate(c *gin.Context) {
	h.transition(c, h.estimates.RejectEstimate)
}

func (h *Handler) ReviseEstimate(c *gin.Context) {
	h.transition(c, h.estimates.ReviseEstimate)
}

func (h *Handler) transition(
	c *gin.Context,
	apply func(ctx context.Context, id string) (*domain.Estimate, error),
) {
	id := strings.TrimSpace(c.Param("id"))
	est, err := apply(c.Request.Context(), id)
	if err != nil {
		status, body := mapEstimateError(err)
		log.Error().Err(err).Str("estimate_id", id).Int("status", status).Msg("estimate transition failed")
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, est)
}

func rejected(message string) errorResponse {
	return errorResponse{
		Status: "rejected",
		Error:  ErrorBody{Code: "validation_failed", Message: message},
	}
}

func mapPipelineError(err error) (int, errorResponse) {
	if errors.Is(err, contractx.ErrValidation) {
		return http.StatusOK, rejected(err.Error())
	}
	for _, m := range upstreamErrors {
		if errors.Is(err, m.err) {
			return http.StatusBadGateway, errorResponse{Error: ErrorBody{Code: m.code, Message: m.err.Error()}}
		}
	}
	return http.StatusInternalServerError, errorResponse{Error: ErrorBody{Code: "internal_error", Message: "internal error"}}
}

func mapEstimateError(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: ErrorBody{Code: "validation_failed", Message: err.Error()}}
	case errors.Is(err, contractx.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: ErrorBody{Code: "estimate_not_found", Message: "estimate not found"}}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, errorResponse{Error: ErrorBody{Code: "invalid_transition", Message: err.Error()}}
	case errors.Is(err, contractx.ErrDataRetrieval):
		return http.StatusBadGateway, errorResponse{Error: ErrorBody{Code: "data_retrieval_failed", Message: contractx.ErrDataRetrieval.Error()}}
	default:
		return http.StatusInternalServerError, errorResponse{Error: ErrorBody{Code: "internal_error", Message: "internal error"}}
	}
}
