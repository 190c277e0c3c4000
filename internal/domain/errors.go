package domain

import "errors"

var (
	ErrTargetStoreUnavailable = errors.New("target store unavailable")
	ErrPersistence            = errors.New("persistence failed")
	ErrNotificationDelivery   = errors.New("notification delivery failed")
	ErrAnalysisProvider       = errors.New("analysis provider failed")
	ErrNotFound               = errors.New("not found")
)
