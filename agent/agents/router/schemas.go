package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

var outputSchemas = map[contractx.Capability]string{
	contractx.CapabilityIntake: `{
		"type": "object",
		"required": ["agent", "complaint", "obd_codes", "service_type", "tasks"],
		"properties": {
			"agent": {"const": "intake_agent"},
			"complaint": {"type": "string"},
			"obd_codes": {"type": "array", "items": {"type": "string"}},
			"service_type": {"enum": ["diagnostic", "repair", "maintenance", "inspection", "warranty"]},
			"tasks": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
			"risk_indicators": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	contractx.CapabilityEstimation: `{
		"type": "object",
		"required": ["agent", "currency", "status", "line_items", "parts_total", "labor_total", "tax", "grand_total"],
		"properties": {
			"agent": {"const": "estimator_agent"},
			"currency": {"type": "string", "minLength": 1},
			"status": {"enum": ["pending_approval", "approved", "rejected", "revised"]},
			"line_items": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["type", "reference_id", "related_fault", "resolves_task", "quantity", "unit_price", "total"],
					"properties": {
						"type": {"enum": ["part", "labor"]},
						"reference_id": {"type": "string", "minLength": 1},
						"related_fault": {"type": "string", "minLength": 1},
						"resolves_task": {"type": "string", "minLength": 1},
						"quantity": {"type": "number", "exclusiveMinimum": 0},
						"unit_price": {"type": "number", "minimum": 0},
						"total": {"type": "number", "minimum": 0}
					}
				}
			},
			"parts_total": {"type": "number"},
			"labor_total": {"type": "number"},
			"tax": {"type": "number"},
			"grand_total": {"type": "number"}
		}
	}`,
	contractx.CapabilityCommunication: `{
		"type": "object",
		"required": ["agent", "message", "tone"],
		"properties": {
			"agent": {"const": "communication_agent"},
			"message": {"type": "string", "minLength": 1},
			"tone": {"type": "string", "minLength": 1}
		}
	}`,
	contractx.CapabilityScheduling: `{
		"type": "object",
		"required": ["agent", "eta"],
		"properties": {
			"agent": {"const": "eta_agent"},
			"eta": {"type": "string", "minLength": 1},
			"schedule_notes": {"type": "string"}
		}
	}`,
}

// OutputVerifier checks capability output against its declared schema.
type OutputVerifier struct {
	schemas map[contractx.Capability]*jsonschema.Schema
}

func NewOutputVerifier() (*OutputVerifier, error) {
	schemas := make(map[contractx.Capability]*jsonschema.Schema, len(outputSchemas))
	for capability, raw := range outputSchemas {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://autoshop.schemas.local/output/%s.schema.json", capability)
		if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add output schema %s: %w", capability, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile output schema %s: %w", capability, err)
		}
		schemas[capability] = compiled
	}
	return &OutputVerifier{schemas: schemas}, nil
}

// Verify rejects syntactically invalid output, output that breaks the
// capability schema, and estimates whose totals do not add up.
func (v *OutputVerifier) Verify(capability contractx.Capability, raw json.RawMessage) error {
	if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
		return fmt.Errorf("%w: %s output is not valid JSON", contractx.ErrSchemaViolation, capability)
	}
	compiled, ok := v.schemas[capability]
	if !ok {
		return fmt.Errorf("%w: no output schema for %s", contractx.ErrSchemaViolation, capability)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: decode %s output: %v", contractx.ErrSchemaViolation, capability, err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s output: %v", contractx.ErrSchemaViolation, capability, err)
	}

	if capability == contractx.CapabilityEstimation {
		var est domain.Estimate
		if err := json.Unmarshal(raw, &est); err != nil {
			return fmt.Errorf("%w: decode estimate: %v", contractx.ErrSchemaViolation, err)
		}
		if !est.TotalsConsistent() {
			return fmt.Errorf("%w: estimate grand_total %.2f does not match line items plus tax",
				contractx.ErrSchemaViolation, est.GrandTotal)
		}
	}
	return nil
}
