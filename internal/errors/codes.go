// Package errors provides structured error handling for backstage services.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Config errors
	CodeConfigEmptyEventID   Code = "CONFIG_EMPTY_EVENT_ID"
	CodeConfigNoDraft        Code = "CONFIG_NO_DRAFT"
	CodeConfigInvalidUpdate  Code = "CONFIG_INVALID_UPDATE"
	CodeConfigEmptyFieldPath Code = "CONFIG_EMPTY_FIELD_PATH"

	// Session errors
	CodeSessionEmptyID           Code = "SESSION_EMPTY_ID"
	CodeSessionEmptyEventID      Code = "SESSION_EMPTY_EVENT_ID"
	CodeSessionEmptyExperienceID Code = "SESSION_EMPTY_EXPERIENCE_ID"
	CodeSessionAlreadyLinked     Code = "SESSION_ALREADY_LINKED"

	// Guest flow errors
	CodeFlowMissingMainSession Code = "FLOW_MISSING_MAIN_SESSION"
	CodeFlowExperienceNotFound Code = "FLOW_EXPERIENCE_NOT_FOUND"
	CodeFlowExperienceNoSteps  Code = "FLOW_EXPERIENCE_NO_STEPS"

	// Guest identity errors
	CodeGuestTokenInvalid Code = "GUEST_TOKEN_INVALID"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)
