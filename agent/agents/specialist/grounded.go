package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	toolx "github.com/tanpawarit/autoshop-agent/agent/tool"
)

type groundedOutput struct {
	Answer string `json:"answer"`
}

// GroundedAnswerer answers customer questions from a QuestionAnswerContext
// only. Any number in the answer must occur in the context.
type GroundedAnswerer struct {
	runner *structuredRunner[groundedOutput]
}

var _ contractx.GroundedAnswerer = (*GroundedAnswerer)(nil)

func NewGroundedAnswerer(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*GroundedAnswerer, error) {
	runner, err := newStructuredRunner[groundedOutput](ctx, chatModel, systemPrompt, "grounded.answer_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile grounded answer graph: %v", contractx.ErrModelInvoke, err)
	}
	return &GroundedAnswerer{runner: runner}, nil
}

func (g *GroundedAnswerer) Answer(ctx context.Context, question string, qa contractx.QuestionAnswerContext) (string, error) {
	out, err := g.runner.Invoke(ctx, map[string]any{
		"question": question,
		"context":  qa,
	})
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(out.Answer)
	if answer == "" {
		return "", fmt.Errorf("%w: grounded answer is empty", contractx.ErrSchemaViolation)
	}
	if answer == toolx.AnswerNoInformation {
		return answer, nil
	}

	rawContext, err := json.Marshal(qa)
	if err != nil {
		return "", fmt.Errorf("%w: marshal grounding context: %v", contractx.ErrValidation, err)
	}
	if missing := ungroundedNumbers(answer, string(rawContext)); len(missing) > 0 {
		return "", fmt.Errorf("%w: answer cites values absent from context: %s",
			contractx.ErrGroundingViolation, strings.Join(missing, ", "))
	}
	return answer, nil
}

var numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ungroundedNumbers lists the numeric tokens of answer that do not occur in
// source. Thousands separators and trailing zero decimals are ignored.
func ungroundedNumbers(answer, source string) []string {
	known := map[string]struct{}{}
	for _, tok := range numberPattern.FindAllString(source, -1) {
		known[canonicalNumber(tok)] = struct{}{}
	}

	var missing []string
	for _, tok := range numberPattern.FindAllString(answer, -1) {
		tok = strings.TrimRight(tok, ",")
		if _, ok := known[canonicalNumber(tok)]; !ok {
			missing = append(missing, tok)
		}
	}
	return missing
}

func canonicalNumber(tok string) string {
	tok = strings.ReplaceAll(strings.TrimRight(tok, ","), ",", "")
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return tok
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
