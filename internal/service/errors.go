package service

import "errors"

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrKitNotFound          = errors.New("kit not found")
	ErrActionNotAllowed     = errors.New("action not allowed in the current state")
	ErrConfirmationRequired = errors.New("cancellation must be confirmed")
	ErrInvalidKitStatus     = errors.New("kit status cannot be set by staff")
	ErrKitExists            = errors.New("booking already has a kit")
	ErrKitCreationBlocked   = errors.New("kit cannot be created for this booking yet")
	ErrStateChanged         = errors.New("booking changed since it was loaded")
)
