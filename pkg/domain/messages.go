package domain

import "errors"

var (
	// ErrNoReply is returned when a request times out or the reply cannot be correlated
	ErrNoReply = errors.New("no reply received")
	// ErrOperationFailed is returned when a peer answers with an unsuccessful OperationResult
	ErrOperationFailed = errors.New("operation reported failure")
)

// Message is a payload carried by the bus
type Message interface {
	MessageType() string
}

// Message type names used on the wire
const (
	TypeSubscribeToSources       = "subscribe_to_sources"
	TypeUnsubscribeFromSources   = "unsubscribe_from_sources"
	TypeGetSessions              = "get_sessions"
	TypeOperationResult          = "operation_result"
	TypeSessionsResponse         = "sessions_response"
	TypeSourceUpdated            = "source_updated"
	TypeSubscriptionTerminated   = "subscription_terminated"
	TypeSubscribeToData          = "subscribe_to_data"
	TypeUnsubscribeFromData      = "unsubscribe_from_data"
	TypeSubscribeToExecution     = "subscribe_to_execution"
	TypeUnsubscribeFromExecution = "unsubscribe_from_execution"
)

// SubscribeToSources asks the platform for source availability notifications
type SubscribeToSources struct{}

func (SubscribeToSources) MessageType() string { return TypeSubscribeToSources }

// UnsubscribeFromSources cancels a SubscribeToSources request
type UnsubscribeFromSources struct {
	Immediate bool `json:"immediate"`
}

func (UnsubscribeFromSources) MessageType() string { return TypeUnsubscribeFromSources }

// GetSessions asks a source for the sessions it can serve
type GetSessions struct{}

func (GetSessions) MessageType() string { return TypeGetSessions }

// OperationResult is the generic reply to a request
type OperationResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

func (OperationResult) MessageType() string { return TypeOperationResult }

// Err converts an unsuccessful result into an error
func (r OperationResult) Err() error {
	if r.Success {
		return nil
	}
	if r.Reason == "" {
		return ErrOperationFailed
	}
	return &operationError{reason: r.Reason}
}

type operationError struct {
	reason string
}

func (e *operationError) Error() string {
	return ErrOperationFailed.Error() + ": " + e.reason
}

func (e *operationError) Unwrap() error {
	return ErrOperationFailed
}

// SessionsResponse answers GetSessions
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

func (SessionsResponse) MessageType() string { return TypeSessionsResponse }

// SourceUpdated announces that a source appeared or disappeared
type SourceUpdated struct {
	Source NodeAddress `json:"source"`
	Role   SourceRole  `json:"role"`
	Added  bool        `json:"added"`
}

func (SourceUpdated) MessageType() string { return TypeSourceUpdated }

// SubscriptionTerminated is sent when the platform revokes a sources subscription
type SubscriptionTerminated struct{}

func (SubscriptionTerminated) MessageType() string { return TypeSubscriptionTerminated }

// SubscribeToData binds a data source to a session
type SubscribeToData struct {
	Session SessionInfo `json:"session"`
}

func (SubscribeToData) MessageType() string { return TypeSubscribeToData }

// UnsubscribeFromData releases a data source binding
type UnsubscribeFromData struct {
	Session SessionInfo `json:"session"`
}

func (UnsubscribeFromData) MessageType() string { return TypeUnsubscribeFromData }

// SubscribeToExecution binds an order execution source to a session
type SubscribeToExecution struct {
	Session SessionInfo `json:"session"`
}

func (SubscribeToExecution) MessageType() string { return TypeSubscribeToExecution }

// UnsubscribeFromExecution releases an order execution binding
type UnsubscribeFromExecution struct {
	Session SessionInfo `json:"session"`
}

func (UnsubscribeFromExecution) MessageType() string { return TypeUnsubscribeFromExecution }
