package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	metricsx "github.com/tanpawarit/autoshop-agent/pkg/metrics"
)

const (
	ToolSQLLookup    = "sql_lookup_tool"
	ToolCustomerDB   = "customer_db_tool"
	ToolJobStatus    = "sql_communication_tool"
	ToolCustomerChat = "customer_chat_tool"
)

// allowlist is the fixed tool contract of every capability.
var allowlist = map[contractx.Capability][]string{
	contractx.CapabilityIntake:        {ToolSQLLookup},
	contractx.CapabilityEstimation:    {ToolSQLLookup},
	contractx.CapabilityCommunication: {ToolCustomerDB, ToolJobStatus, ToolCustomerChat},
	contractx.CapabilityScheduling:    nil,
}

var argSchemas = map[string]string{
	ToolSQLLookup: `{
		"type": "object",
		"properties": {
			"vehicle_id": {"type": "string"},
			"customer_id": {"type": "string"},
			"part_codes": {"type": "array", "items": {"type": "string"}},
			"fault_codes": {"type": "array", "items": {"type": "string"}}
		},
		"additionalProperties": false
	}`,
	ToolCustomerDB:   customerArgsSchema,
	ToolCustomerChat: customerArgsSchema,
	ToolJobStatus: `{
		"type": "object",
		"properties": {
			"customer_id": {"type": "string"},
			"job_card_id": {"type": "string"}
		},
		"additionalProperties": false
	}`,
}

const customerArgsSchema = `{
	"type": "object",
	"properties": {
		"customer_id": {"type": "string"},
		"job_card_id": {"type": "string"},
		"vehicle_id": {"type": "string"},
		"question": {"type": "string"}
	},
	"additionalProperties": false
}`

// Toolbox executes tool calls for a capability, enforcing its allowlist and
// the argument schema of every tool.
type Toolbox struct {
	lookup     *SQLLookupTool
	customerDB *CustomerDBTool
	chat       *CustomerChatTool
	status     *JobStatusTool
	schemas    map[string]*jsonschema.Schema
}

var _ contractx.ToolGateway = (*Toolbox)(nil)

func NewToolbox(gateway contractx.KnowledgeGateway, answerer contractx.GroundedAnswerer) (*Toolbox, error) {
	schemas := make(map[string]*jsonschema.Schema, len(argSchemas))
	for name, raw := range argSchemas {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://autoshop.schemas.local/tools/%s.schema.json", name)
		if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("tool schema load failed: %w", err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tool schema compile failed: %w", err)
		}
		schemas[name] = compiled
	}

	return &Toolbox{
		lookup:     NewSQLLookupTool(gateway),
		customerDB: NewCustomerDBTool(gateway, answerer, nil),
		chat:       NewCustomerChatTool(gateway, nil),
		status:     NewJobStatusTool(gateway),
		schemas:    schemas,
	}, nil
}

// Allowed reports whether capability may call tool.
func Allowed(capability contractx.Capability, tool string) bool {
	for _, name := range allowlist[capability] {
		if name == tool {
			return true
		}
	}
	return false
}

// InfosFor returns the tool infos a capability's model may be bound to.
func InfosFor(capability contractx.Capability) []*schema.ToolInfo {
	names := allowlist[capability]
	out := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		out = append(out, toolInfos[name])
	}
	return out
}

var toolInfos = map[string]*schema.ToolInfo{
	ToolSQLLookup: {
		Name: ToolSQLLookup,
		Desc: "Look up vehicle, customer, parts, fault codes and the labor operations linked to those fault codes.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"vehicle_id":  {Type: schema.String, Desc: "Vehicle id"},
			"customer_id": {Type: schema.String, Desc: "Customer id"},
			"part_codes":  {Type: schema.Array, Desc: "Part ids or part codes", ElemInfo: &schema.ParameterInfo{Type: schema.String}},
			"fault_codes": {Type: schema.Array, Desc: "OBD fault codes, descriptions allowed", ElemInfo: &schema.ParameterInfo{Type: schema.String}},
		}),
	},
	ToolCustomerDB: {
		Name:        ToolCustomerDB,
		Desc:        "Answer a customer question from their own records and record approve or reject decisions on pending job cards.",
		ParamsOneOf: schema.NewParamsOneOfByParams(customerParams()),
	},
	ToolCustomerChat: {
		Name:        ToolCustomerChat,
		Desc:        "Fetch the customer records relevant to a question without answering it.",
		ParamsOneOf: schema.NewParamsOneOfByParams(customerParams()),
	},
	ToolJobStatus: {
		Name: ToolJobStatus,
		Desc: "Get the current status of a customer's job card.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"customer_id": {Type: schema.String, Desc: "Customer id", Required: true},
			"job_card_id": {Type: schema.String, Desc: "Job card id", Required: true},
		}),
	},
}

func customerParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"customer_id": {Type: schema.String, Desc: "Customer id", Required: true},
		"job_card_id": {Type: schema.String, Desc: "Job card id", Required: true},
		"vehicle_id":  {Type: schema.String, Desc: "Vehicle id", Required: true},
		"question":    {Type: schema.String, Desc: "Customer question", Required: true},
	}
}

// RequestsFromCalls converts model tool calls into tool requests.
func RequestsFromCalls(calls []schema.ToolCall) ([]contractx.ToolRequest, error) {
	out := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: tool %s arguments: %v", contractx.ErrSchemaViolation, call.Function.Name, err)
			}
		}
		out = append(out, contractx.ToolRequest{ID: call.ID, Tool: call.Function.Name, Args: args})
	}
	return out, nil
}

// Execute runs the requests in order. A tool outside the capability's
// allowlist fails the whole batch before anything runs.
func (b *Toolbox) Execute(ctx context.Context, capability contractx.Capability, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	for _, req := range reqs {
		if !Allowed(capability, req.Tool) {
			metricsx.RecordToolCall(string(capability), req.Tool, contractx.ErrToolNotAllowed)
			return nil, fmt.Errorf("%w: capability=%s tool=%s", contractx.ErrToolNotAllowed, capability, req.Tool)
		}
	}

	out := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		result, err := b.run(ctx, req)
		metricsx.RecordToolCall(string(capability), req.Tool, err)
		if err != nil {
			return nil, err
		}
		out = append(out, contractx.ToolResult{ID: req.ID, Tool: req.Tool, Result: result})
	}
	return out, nil
}

func (b *Toolbox) run(ctx context.Context, req contractx.ToolRequest) (any, error) {
	raw, err := b.validate(req)
	if err != nil {
		return nil, err
	}

	switch req.Tool {
	case ToolSQLLookup:
		var in SQLLookupRequest
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("%w: decode %s arguments: %v", contractx.ErrSchemaViolation, req.Tool, err)
		}
		return b.lookup.Run(ctx, in)
	case ToolCustomerDB:
		var in CustomerDBRequest
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("%w: decode %s arguments: %v", contractx.ErrSchemaViolation, req.Tool, err)
		}
		return b.customerDB.Run(ctx, in)
	case ToolCustomerChat:
		var in CustomerDBRequest
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("%w: decode %s arguments: %v", contractx.ErrSchemaViolation, req.Tool, err)
		}
		return b.chat.Run(ctx, in)
	case ToolJobStatus:
		var in JobStatusRequest
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("%w: decode %s arguments: %v", contractx.ErrSchemaViolation, req.Tool, err)
		}
		return b.status.Run(ctx, in)
	default:
		return nil, fmt.Errorf("%w: unknown tool %s", contractx.ErrToolNotAllowed, req.Tool)
	}
}

// validate normalizes args to plain JSON values and checks them against the
// tool's schema. It returns the encoded arguments.
func (b *Toolbox) validate(req contractx.ToolRequest) ([]byte, error) {
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s arguments: %v", contractx.ErrSchemaViolation, req.Tool, err)
	}
	compiled, ok := b.schemas[req.Tool]
	if !ok {
		return raw, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s arguments: %v", contractx.ErrSchemaViolation, req.Tool, err)
	}
	if err := compiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: tool %s arguments: %v", contractx.ErrSchemaViolation, req.Tool, err)
	}
	return raw, nil
}
