package service

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrSubmitInFlight  = errors.New("submission already in progress")
	ErrNothingToSubmit = errors.New("nothing to submit")
	// ErrStaleValidation means a newer thumbnail pick superseded this one.
	ErrStaleValidation = errors.New("thumbnail validation superseded")
)
