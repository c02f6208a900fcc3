package handler

import (
	"errors"
	"net/http"

	customError "github.com/debtflow/collections-engine/pkg/errors"
	"github.com/debtflow/collections-engine/pkg/response"
)

// statusForCode maps business error codes onto HTTP status codes. All core
// errors are precondition violations, so they surface as 4xx; only
// infrastructure failures become 5xx.
func statusForCode(code string) int {
	switch code {
	case customError.ErrCodeDebtNotFound,
		customError.ErrCodePlanNotFound,
		customError.ErrCodeTransactionNotFound:
		return http.StatusNotFound
	case customError.ErrCodeInvalidAmount:
		return http.StatusBadRequest
	case customError.ErrCodeInvalidTransition,
		customError.ErrCodeDebtClosed,
		customError.ErrCodeAlreadyActive,
		customError.ErrCodeAlreadyPaid,
		customError.ErrCodeDuplicateSequence,
		customError.ErrCodeDuplicateProviderRef,
		customError.ErrCodeNoActiveOffer,
		customError.ErrCodeActivePlanExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	var businessErr *customError.BusinessError
	if errors.As(err, &businessErr) {
		status := statusForCode(businessErr.Code)
		if status == http.StatusInternalServerError {
			response.InternalServerError(w, businessErr.Message, businessErr.Err)
			return
		}
		response.BusinessError(w, status, businessErr.Code, businessErr.Message)
		return
	}

	response.InternalServerError(w, "unexpected error", err)
}
