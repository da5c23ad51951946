package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string { return e.AggregateID }
func (e BaseEvent) GetEventType() string { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int { return e.Version }

// Source identifies this service on the event bus
const Source = "artion.bundles"

const (
	TypeSagaStarted          = "bundle.saga_started"
	TypeAuthorizationGranted = "bundle.authorization_granted"
	TypeBundleCommitted      = "bundle.committed"
	TypeBundleAborted        = "bundle.aborted"
	TypeCompensationFailed   = "bundle.compensation_failed"
)

// SagaStarted is raised when a commit attempt leaves Ready
type SagaStarted struct {
	BaseEvent
	SessionID  string `json:"session_id"`
	BundleName string `json:"bundle_name"`
	Price      string `json:"price"`
	AssetCount int    `json:"asset_count"`
}

// NewSagaStarted creates a SagaStarted event
func NewSagaStarted(sagaID, sessionID, name, price string, assets int, ts time.Time) SagaStarted {
	return SagaStarted{
		BaseEvent:  BaseEvent{AggregateID: sagaID, EventType: TypeSagaStarted, Timestamp: ts, Version: 1},
		SessionID:  sessionID,
		BundleName: name,
		Price:      price,
		AssetCount: assets,
	}
}

// AuthorizationGranted is raised after every pending contract was authorized
type AuthorizationGranted struct {
	BaseEvent
	Contracts []string `json:"contracts"`
}

// NewAuthorizationGranted creates an AuthorizationGranted event
func NewAuthorizationGranted(sessionID string, contracts []string, ts time.Time) AuthorizationGranted {
	return AuthorizationGranted{
		BaseEvent: BaseEvent{AggregateID: sessionID, EventType: TypeAuthorizationGranted, Timestamp: ts, Version: 1},
		Contracts: contracts,
	}
}

// BundleCommitted is raised when the listing reached finality
type BundleCommitted struct {
	BaseEvent
	SessionID string `json:"session_id"`
	BundleID  string `json:"bundle_id"`
}

// NewBundleCommitted creates a BundleCommitted event
func NewBundleCommitted(sagaID, sessionID, bundleID string, ts time.Time) BundleCommitted {
	return BundleCommitted{
		BaseEvent: BaseEvent{AggregateID: sagaID, EventType: TypeBundleCommitted, Timestamp: ts, Version: 1},
		SessionID: sessionID,
		BundleID:  bundleID,
	}
}

// BundleAborted is raised when an attempt ended with nothing left behind
type BundleAborted struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
	Reason    string `json:"reason"`
}

// NewBundleAborted creates a BundleAborted event
func NewBundleAborted(sagaID, sessionID, phase, reason string, ts time.Time) BundleAborted {
	return BundleAborted{
		BaseEvent: BaseEvent{AggregateID: sagaID, EventType: TypeBundleAborted, Timestamp: ts, Version: 1},
		SessionID: sessionID,
		Phase:     phase,
		Reason:    reason,
	}
}

// CompensationFailed is raised when the off-chain bundle could not be deleted
type CompensationFailed struct {
	BaseEvent
	SessionID string `json:"session_id"`
	BundleID  string `json:"bundle_id"`
	Reason    string `json:"reason"`
}

// NewCompensationFailed creates a CompensationFailed event
func NewCompensationFailed(sagaID, sessionID, bundleID, reason string, ts time.Time) CompensationFailed {
	return CompensationFailed{
		BaseEvent: BaseEvent{AggregateID: sagaID, EventType: TypeCompensationFailed, Timestamp: ts, Version: 1},
		SessionID: sessionID,
		BundleID:  bundleID,
		Reason:    reason,
	}
}
