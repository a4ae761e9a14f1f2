package orchestrator

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/domain"
)

// Actions whose requests take the communication shape.
var communicationActions = map[string]struct{}{
	"communication": {},
	"chat":          {},
	"customer_qa":   {},
	"send_approval": {},
}

// BuildRequest normalizes an inbound request into the canonical router
// request. Shapes are tried in order: free text, job card payload,
// communication fields, then the field-by-field fallback.
func BuildRequest(in contractx.MasterRequest) (contractx.Request, error) {
	action := strings.ToLower(strings.TrimSpace(in.Action))
	req := contractx.Request{
		Action:     action,
		VehicleID:  strings.TrimSpace(in.VehicleID),
		CustomerID: strings.TrimSpace(in.CustomerID),
		Complaint:  strings.TrimSpace(in.CustomerComplaint),
		ReportText: strings.TrimSpace(in.OBDReportText),
		JobCardID:  strings.TrimSpace(in.JobCardID),
		Question:   strings.TrimSpace(in.Question),
		Context:    strings.TrimSpace(in.Context),
	}

	if text := strings.TrimSpace(in.UserInput); text != "" {
		req.Shape = contractx.ShapeFreeText
		req.Input = text
		req.JobCardID = firstNonEmpty(req.JobCardID, domain.ExtractJobCardID(text))
		if action != "" {
			req.Input = "action: " + action + "\n" + text
		}
		return req, nil
	}

	if in.JobCard != nil {
		card := *in.JobCard
		card.JobCardID = strings.TrimSpace(card.JobCardID)
		req.Shape = contractx.ShapeJobCard
		req.JobCard = &card
		req.JobCardID = firstNonEmpty(req.JobCardID, card.JobCardID)
		req.VehicleID = firstNonEmpty(req.VehicleID, strings.TrimSpace(card.VehicleID))
		req.CustomerID = firstNonEmpty(req.CustomerID, strings.TrimSpace(card.CustomerID))
		req.Input = describe(req)
		return req, nil
	}

	if _, ok := communicationActions[action]; ok {
		var missing []string
		if req.CustomerID == "" {
			missing = append(missing, "customer_id")
		}
		if req.JobCardID == "" {
			missing = append(missing, "job_card_id")
		}
		if len(missing) > 0 {
			return contractx.Request{}, fmt.Errorf("%w: missing required fields: %s",
				contractx.ErrValidation, strings.Join(missing, ", "))
		}
		req.Shape = contractx.ShapeCommunication
		req.Input = describe(req)
		return req, nil
	}

	req.Shape = contractx.ShapeFields
	req.Input = describe(req)
	if req.Input == "" {
		return contractx.Request{}, fmt.Errorf("%w: request has no content", contractx.ErrValidation)
	}
	return req, nil
}

// describe concatenates the present fields into one descriptive line.
func describe(req contractx.Request) string {
	fields := []struct {
		label string
		value string
	}{
		{"Vehicle ID", req.VehicleID},
		{"Customer ID", req.CustomerID},
		{"Complaint", req.Complaint},
		{"OBD report", req.ReportText},
		{"Job card ID", req.JobCardID},
		{"Question", req.Question},
		{"Context", req.Context},
	}
	var parts []string
	for _, f := range fields {
		if f.value != "" {
			parts = append(parts, f.label+": "+f.value)
		}
	}
	if req.JobCard != nil {
		if len(req.JobCard.FaultCodes) > 0 {
			parts = append(parts, "Fault codes: "+strings.Join(req.JobCard.FaultCodes, ", "))
		}
		if len(req.JobCard.Tasks) > 0 {
			parts = append(parts, "Tasks: "+strings.Join(req.JobCard.Tasks, "; "))
		}
		if req.Complaint == "" && req.JobCard.Complaint != "" {
			parts = append(parts, "Complaint: "+req.JobCard.Complaint)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
