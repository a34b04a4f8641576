package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// Contest-specific error constructors. Codes are part of the API contract
// and must stay stable.

func ErrMatchClosed(matchID string) *AppError {
	return &AppError{Code: "MATCH_CLOSED", Message: fmt.Sprintf("betting window for match %s is closed", matchID), Status: 409}
}

func ErrNotGroupMember(userID, groupID string) *AppError {
	return &AppError{Code: "NOT_GROUP_MEMBER", Message: fmt.Sprintf("user %s has no active membership in group %s", userID, groupID), Status: 403}
}

func ErrInvalidPayload(msg string) *AppError {
	return &AppError{Code: "INVALID_PAYLOAD", Message: msg, Status: 400}
}

// ErrAlreadyExists points the caller at the existing prediction so clients
// can switch to an update.
func ErrAlreadyExists(existingID string) *AppError {
	return &AppError{Code: "ALREADY_EXISTS", Message: fmt.Sprintf("prediction already exists: %s", existingID), Status: 409}
}

func ErrNotOwner(predictionID string) *AppError {
	return &AppError{Code: "NOT_OWNER", Message: fmt.Sprintf("prediction %s belongs to another user", predictionID), Status: 403}
}

func ErrNotPending(predictionID string) *AppError {
	return &AppError{Code: "NOT_PENDING", Message: fmt.Sprintf("prediction %s is no longer pending", predictionID), Status: 409}
}

func ErrInvalidScores(msg string) *AppError {
	return &AppError{Code: "INVALID_SCORES", Message: msg, Status: 400}
}

func ErrDuplicateResult(matchID string, resultType ResultType) *AppError {
	return &AppError{Code: "DUPLICATE_RESULT", Message: fmt.Sprintf("result of type %s already recorded for match %s", resultType, matchID), Status: 409}
}

func ErrNotConfirmable(resultID, state string) *AppError {
	return &AppError{Code: "NOT_CONFIRMABLE", Message: fmt.Sprintf("result %s cannot be confirmed from state %s", resultID, state), Status: 409}
}

func ErrNotAmendable(resultID, state string) *AppError {
	return &AppError{Code: "NOT_AMENDABLE", Message: fmt.Sprintf("result %s cannot be amended from state %s", resultID, state), Status: 409}
}

func ErrNotRanked(userID string) *AppError {
	return &AppError{Code: "NOT_RANKED", Message: fmt.Sprintf("user %s has no settled predictions in this leaderboard", userID), Status: 404}
}

func ErrDeadlineExceeded(op string) *AppError {
	return &AppError{Code: "DEADLINE_EXCEEDED", Message: fmt.Sprintf("operation %s exceeded its deadline", op), Status: 504}
}
