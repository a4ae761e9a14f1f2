package contract

import "errors"

var (
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrSchemaViolation    = errors.New("model response violates schema")
	ErrPromptMissing      = errors.New("required prompt is missing")
	ErrValidation         = errors.New("validation failed")
	ErrGroundingViolation = errors.New("answer is not grounded in the supplied context")
	ErrDataRetrieval      = errors.New("failed to retrieve data")
	ErrToolNotAllowed     = errors.New("tool not allowed for capability")
	ErrNotFound           = errors.New("record not found")
)
