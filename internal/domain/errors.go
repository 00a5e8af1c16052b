package domain

import "errors"

var (
	ErrInvalidMedication       = errors.New("invalid medication")
	ErrMedicationNotFound      = errors.New("medication not found")
	ErrPreferredTimeNotSet     = errors.New("preferred reminder time not set")
	ErrChangeStreamUnsupported = errors.New("change stream not supported")
	ErrNotificationNotFound    = errors.New("notification not found")
)
