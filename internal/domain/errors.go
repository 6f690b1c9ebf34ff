package domain

import "errors"

// Sentinel errors for the capture domain.
var (
	ErrAlreadyRecording = errors.New("domain: session already recording")
	ErrNotRecording     = errors.New("domain: no active session")
	ErrWrongTab         = errors.New("domain: entry from a tab not bound to the session")
)
