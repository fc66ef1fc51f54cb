package risk

import (
	"strings"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/money"
)

func ValidateEvaluationRequest(req *EvaluationRequest) error {
	if strings.TrimSpace(req.EventType) == "" {
		return apierr.Validation("event_type is required")
	}
	if strings.TrimSpace(req.SubjectID) == "" {
		return apierr.Validation("subject_id is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return apierr.Validation("user_id is required")
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		return apierr.Validation("currency is required")
	}
	if _, err := money.Parse(req.Amount); err != nil {
		return apierr.Wrap(apierr.KindValidation, "invalid amount format", err)
	}
	return nil
}
