package chat

// Reason is the code carried in the content of an ERROR_RESPONSE.
type Reason string

const (
	ReasonNotAuthenticated     Reason = "not-authenticated"
	ReasonAlreadyAuthenticated Reason = "already-authenticated"
	ReasonUnknownType          Reason = "unknown-type"
	ReasonMalformedMessage     Reason = "malformed-message"
	ReasonInvalidLength        Reason = "invalid-length"
	ReasonEmptyUsername        Reason = "empty-username"
	ReasonUsernameTaken        Reason = "username-taken"
	ReasonInvalidCredentials   Reason = "invalid-credentials"
	ReasonUserOffline          Reason = "user-offline"
	ReasonInternalError        Reason = "internal-error"
)
