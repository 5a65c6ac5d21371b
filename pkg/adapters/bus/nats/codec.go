package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aescanero/tradehost/pkg/domain"
)

// TypeError marks a reply envelope carrying a responder failure
const TypeError = "error"

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrRemote      = errors.New("remote responder failed")
)

// Envelope is the wire frame of every bus message
type Envelope struct {
	Type    string          `json:"type"`
	Sender  string          `json:"sender,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type errorPayload struct {
	Reason string `json:"reason"`
}

// Codec maps message types to Go values and back
type Codec struct {
	mu    sync.RWMutex
	types map[string]func() domain.Message
}

// NewCodec returns a codec that knows every domain message type
func NewCodec() *Codec {
	c := &Codec{types: make(map[string]func() domain.Message)}
	c.Register(domain.TypeSubscribeToSources, func() domain.Message { return &domain.SubscribeToSources{} })
	c.Register(domain.TypeUnsubscribeFromSources, func() domain.Message { return &domain.UnsubscribeFromSources{} })
	c.Register(domain.TypeGetSessions, func() domain.Message { return &domain.GetSessions{} })
	c.Register(domain.TypeOperationResult, func() domain.Message { return &domain.OperationResult{} })
	c.Register(domain.TypeSessionsResponse, func() domain.Message { return &domain.SessionsResponse{} })
	c.Register(domain.TypeSourceUpdated, func() domain.Message { return &domain.SourceUpdated{} })
	c.Register(domain.TypeSubscriptionTerminated, func() domain.Message { return &domain.SubscriptionTerminated{} })
	c.Register(domain.TypeSubscribeToData, func() domain.Message { return &domain.SubscribeToData{} })
	c.Register(domain.TypeUnsubscribeFromData, func() domain.Message { return &domain.UnsubscribeFromData{} })
	c.Register(domain.TypeSubscribeToExecution, func() domain.Message { return &domain.SubscribeToExecution{} })
	c.Register(domain.TypeUnsubscribeFromExecution, func() domain.Message { return &domain.UnsubscribeFromExecution{} })
	return c
}

// Register adds or replaces the constructor for a message type. The
// constructor must return a pointer so the payload can be decoded into it.
func (c *Codec) Register(messageType string, newMessage func() domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[messageType] = newMessage
}

// Encode frames msg on behalf of sender
func (c *Codec) Encode(sender domain.NodeAddress, msg domain.Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msg.MessageType(), err)
	}

	data, err := json.Marshal(Envelope{
		Type:    msg.MessageType(),
		Sender:  sender.String(),
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// EncodeError frames a responder failure
func (c *Codec) EncodeError(sender domain.NodeAddress, cause error) []byte {
	payload, _ := json.Marshal(errorPayload{Reason: cause.Error()})
	data, _ := json.Marshal(Envelope{Type: TypeError, Sender: sender.String(), Payload: payload})
	return data
}

// Decode unframes data. Messages are returned by value, matching what
// local callers construct. Error envelopes decode to an error wrapping
// ErrRemote.
func (c *Codec) Decode(data []byte) (domain.NodeAddress, domain.Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	sender := domain.NodeAddress(env.Sender)

	if env.Type == TypeError {
		var p errorPayload
		_ = json.Unmarshal(env.Payload, &p)
		return sender, nil, fmt.Errorf("%w: %s", ErrRemote, p.Reason)
	}

	c.mu.RLock()
	newMessage, ok := c.types[env.Type]
	c.mu.RUnlock()
	if !ok {
		return sender, nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	msg := newMessage()
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return sender, nil, fmt.Errorf("failed to unmarshal %s: %w", env.Type, err)
		}
	}
	return sender, deref(msg), nil
}

// deref turns the decoded pointer back into the value type callers expect
func deref(msg domain.Message) domain.Message {
	switch m := msg.(type) {
	case *domain.SubscribeToSources:
		return *m
	case *domain.UnsubscribeFromSources:
		return *m
	case *domain.GetSessions:
		return *m
	case *domain.OperationResult:
		return *m
	case *domain.SessionsResponse:
		return *m
	case *domain.SourceUpdated:
		return *m
	case *domain.SubscriptionTerminated:
		return *m
	case *domain.SubscribeToData:
		return *m
	case *domain.UnsubscribeFromData:
		return *m
	case *domain.SubscribeToExecution:
		return *m
	case *domain.UnsubscribeFromExecution:
		return *m
	default:
		return msg
	}
}

// Subject maps a routing path onto a NATS subject below prefix. Empty
// slots are skipped and tokens are made subject-safe.
func Subject(prefix string, path domain.RoutingPath) (string, error) {
	segments := path.Segments()
	if len(segments) == 0 {
		return "", fmt.Errorf("routing path %s has no hops", path)
	}
	tokens := make([]string, 0, len(segments)+1)
	tokens = append(tokens, prefix)
	for _, s := range segments {
		tokens = append(tokens, token(s))
	}
	return strings.Join(tokens, "."), nil
}

// ParticipantSubject is where a participant with the given ID receives messages
func ParticipantSubject(prefix, id string) string {
	return prefix + "." + token(id)
}

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

func token(s string) string {
	return subjectReplacer.Replace(s)
}
