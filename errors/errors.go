package errors

import "fmt"

// Framing and decoding
var (
	ErrFrameTooLarge    = fmt.Errorf("declared body length exceeds the frame cap")
	ErrShortFrame       = fmt.Errorf("frame is shorter than its header")
	ErrLengthMismatch   = fmt.Errorf("body length disagrees with the header")
	ErrChecksumMismatch = fmt.Errorf("body checksum mismatch")
	ErrMalformedBody    = fmt.Errorf("malformed message body")
	ErrUnknownKind      = fmt.Errorf("unknown message kind")
	ErrMissingField     = fmt.Errorf("required field is missing")
)

// Sessions and authentication
var (
	ErrEmptyUsername      = fmt.Errorf("username is empty")
	ErrUsernameTaken      = fmt.Errorf("username is already taken")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidHash        = fmt.Errorf("invalid password hash format")
	ErrLoginRejected      = fmt.Errorf("login rejected by server")
)

// Runtime
var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrEmptyWords    = fmt.Errorf("no words have been found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrNoCertificate = fmt.Errorf("no TLS certificate configured")
)
