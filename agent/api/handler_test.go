package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

type fakeExecutor struct {
	result contractx.Result
	err    error
	last   contractx.MasterRequest
}

func (f *fakeExecutor) Execute(_ context.Context, in contractx.MasterRequest) (contractx.Result, error) {
	f.last = in
	return f.result, f.err
}

type fakeEstimates struct {
	est *domain.Estimate
	err error
	ids []string
}

func (f *fakeEstimates) apply(id string) (*domain.Estimate, error) {
	f.ids = append(f.ids, id)
	return f.est, f.err
}

func (f *fakeEstimates) ApproveEstimate(_ context.Context, id string) (*domain.Estimate, error) {
	return f.apply(id)
}

func (f *fakeEstimates) RejectEstimate(_ context.Context, id string) (*domain.Estimate, error) {
	return f.apply(id)
}

func (f *fakeEstimates) ReviseEstimate(_ context.Context, id string) (*domain.Estimate, error) {
	return f.apply(id)
}

func newTestEngine(exec Executor, est EstimateActions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewEngine(NewHandler(exec, est))
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestMasterReturnsOutputVerbatim(t *testing.T) {
	output := `{"agent":"eta_agent","eta":"2 days"}`
	exec := &fakeExecutor{result: contractx.Result{
		Capability: contractx.CapabilityScheduling,
		Output:     json.RawMessage(output),
	}}
	r := newTestEngine(exec, &fakeEstimates{})

	w := post(r, "/v1/agents/master", `{"action":"eta","job_card_id":"J001"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != output {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if exec.last.Action != "eta" || exec.last.JobCardID != "J001" {
		t.Fatalf("request not forwarded: %+v", exec.last)
	}
}

func TestMasterValidationIsStructuredRejection(t *testing.T) {
	exec := &fakeExecutor{err: fmt.Errorf("%w: missing required fields: customer_id", contractx.ErrValidation)}
	r := newTestEngine(exec, &fakeEstimates{})

	w := post(r, "/v1/agents/master", `{"action":"chat"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body.Status != "rejected" || body.Error.Code != "validation_failed" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMasterInvalidJSONIsRejected(t *testing.T) {
	r := newTestEngine(&fakeExecutor{}, &fakeEstimates{})

	w := post(r, "/v1/agents/master", "{")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decodeError(t, w); body.Status != "rejected" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMasterUpstreamFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"schema", fmt.Errorf("%w: intake reply", contractx.ErrSchemaViolation), "schema_violation"},
		{"grounding", fmt.Errorf("%w: 450", contractx.ErrGroundingViolation), "grounding_violation"},
		{"model", fmt.Errorf("%w: timeout", contractx.ErrModelInvoke), "model_invoke_failed"},
		{"tool", fmt.Errorf("%w: math_tool", contractx.ErrToolNotAllowed), "tool_not_allowed"},
		{"data", fmt.Errorf("%w: %w", contractx.ErrDataRetrieval, errors.New("dial tcp: refused")), "data_retrieval_failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(&fakeExecutor{err: tc.err}, &fakeEstimates{})

			w := post(r, "/v1/agents/master", `{"user_input":"hello"}`)

			if w.Code != http.StatusBadGateway {
				t.Fatalf("expected 502, got %d", w.Code)
			}
			body := decodeError(t, w)
			if body.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, body)
			}
			if bytes.Contains(w.Body.Bytes(), []byte("dial tcp")) {
				t.Fatalf("cause leaked into response: %s", w.Body.String())
			}
		})
	}
}

func TestEstimateTransitions(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"approve", "/v1/estimates/E001/approve", nil, http.StatusOK},
		{"reject not found", "/v1/estimates/E404/reject", fmt.Errorf("%w: estimate E404", contractx.ErrNotFound), http.StatusNotFound},
		{"revise conflict", "/v1/estimates/E001/revise", fmt.Errorf("%w: estimate approved -> approved", domain.ErrInvalidTransition), http.StatusConflict},
		{"store down", "/v1/estimates/E001/approve", fmt.Errorf("%w: timeout", contractx.ErrDataRetrieval), http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			est := &fakeEstimates{est: &domain.Estimate{ID: "E001", Status: domain.EstimateApproved}, err: tc.err}
			r := newTestEngine(&fakeExecutor{}, est)

			w := post(r, tc.path, "")

			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if len(est.ids) != 1 {
				t.Fatalf("expected one transition call, got %v", est.ids)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestEngine(&fakeExecutor{}, &fakeEstimates{})

	for _, path := range []string{"/healthz", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}
