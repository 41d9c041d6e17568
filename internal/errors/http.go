package errors

import "net/http"

// HTTPStatus maps domain codes to HTTP status codes.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch GetCode(err) {
	// Bad request - validation failures, bad input
	case CodeConfigEmptyEventID,
		CodeConfigInvalidUpdate,
		CodeConfigEmptyFieldPath,
		CodeSessionEmptyID,
		CodeSessionEmptyEventID,
		CodeSessionEmptyExperienceID,
		CodeFlowMissingMainSession:
		return http.StatusBadRequest

	// Conflict - state doesn't allow operation
	case CodeConfigNoDraft,
		CodeSessionAlreadyLinked,
		CodeFlowExperienceNoSteps,
		CodeAlreadyExists:
		return http.StatusConflict

	// Not found - resource doesn't exist
	case CodeNotFound,
		CodeFlowExperienceNotFound:
		return http.StatusNotFound

	case CodeGuestTokenInvalid:
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}
