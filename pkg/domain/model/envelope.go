package model

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// ErrUnknownEnvelope is returned when a push event envelope does not match
// any recognized shape. Such envelopes are logged and dropped at the
// transport boundary, never dispatched.
var ErrUnknownEnvelope = goerr.New("unknown envelope shape")

// EventMeta distinguishes a push event's origin and kind from its payload
type EventMeta struct {
	Author  types.EventAuthor `json:"author"`
	Type    types.EventType   `json:"type"`
	Variant string            `json:"variant,omitempty"`
}

// Envelope is the wire wrapper for every push event and status POST body
type Envelope struct {
	Event   EventMeta       `json:"event"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Event is the decoded, typed form of an envelope
type Event interface {
	isEvent()
}

// StatusEvent carries a single user status transition
type StatusEvent struct {
	Update StatusUpdate
}

// MessageEvent carries a live chat message
type MessageEvent struct {
	Message Message
}

// ReactionEvent carries the full replacement reaction set for a message
type ReactionEvent struct {
	MessageID types.MessageID                       `json:"messageId"`
	ChannelID types.ChannelID                       `json:"channelId"`
	Reactions map[types.ReactionKind][]types.UserID `json:"reactions"`
}

// MembershipEvent signals a fresh or changed membership view; receivers
// respond with a full presence resync rather than an incremental merge
type MembershipEvent struct {
	Type        types.EventType
	WorkspaceID types.WorkspaceID `json:"workspaceId"`
}

func (StatusEvent) isEvent()     {}
func (MessageEvent) isEvent()    {}
func (ReactionEvent) isEvent()   {}
func (MembershipEvent) isEvent() {}

// Classify decodes the envelope into its typed event. Envelopes with an
// unrecognized author or type, or with a payload that does not match the
// declared type, fail with ErrUnknownEnvelope.
func (e *Envelope) Classify() (Event, error) {
	if !e.Event.Author.IsValid() {
		return nil, goerr.Wrap(ErrUnknownEnvelope, "invalid event author",
			goerr.V("author", string(e.Event.Author)))
	}
	if !e.Event.Type.IsValid() {
		return nil, goerr.Wrap(ErrUnknownEnvelope, "invalid event type",
			goerr.V("type", string(e.Event.Type)))
	}

	switch e.Event.Type {
	case types.EventTypeStatus:
		var update StatusUpdate
		if err := json.Unmarshal(e.Message, &update); err != nil {
			return nil, goerr.Wrap(ErrUnknownEnvelope, "malformed status payload", goerr.V("cause", err.Error()))
		}
		if update.Status == "" {
			// Older producers carry the status only in the variant field
			update.Status = types.UserStatus(e.Event.Variant)
		}
		if update.UserID == "" || !update.Status.IsValid() {
			return nil, goerr.Wrap(ErrUnknownEnvelope, "incomplete status payload",
				goerr.V("userID", update.UserID), goerr.V("status", string(update.Status)))
		}
		return StatusEvent{Update: update}, nil

	case types.EventTypeMessage:
		var msg Message
		if err := json.Unmarshal(e.Message, &msg); err != nil {
			return nil, goerr.Wrap(ErrUnknownEnvelope, "malformed message payload", goerr.V("cause", err.Error()))
		}
		if msg.ID == "" || msg.ChannelID == "" {
			return nil, goerr.Wrap(ErrUnknownEnvelope, "incomplete message payload", goerr.V("messageID", msg.ID))
		}
		return MessageEvent{Message: msg}, nil

	case types.EventTypeReaction:
		var reaction ReactionEvent
		if err := json.Unmarshal(e.Message, &reaction); err != nil {
			return nil, goerr.Wrap(ErrUnknownEnvelope, "malformed reaction payload", goerr.V("cause", err.Error()))
		}
		if reaction.MessageID == "" {
			return nil, goerr.Wrap(ErrUnknownEnvelope, "incomplete reaction payload")
		}
		return reaction, nil

	case types.EventTypeWelcome, types.EventTypeUserJoined:
		var membership MembershipEvent
		if len(e.Message) > 0 {
			// Payload is optional for membership events
			_ = json.Unmarshal(e.Message, &membership)
		}
		membership.Type = e.Event.Type
		return membership, nil

	default:
		return nil, goerr.Wrap(ErrUnknownEnvelope, "unhandled event type", goerr.V("type", string(e.Event.Type)))
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// All envelope payload types are plain serializable structs
		panic(err)
	}
	return data
}

// NewStatusEnvelope builds a status envelope for a user transition
func NewStatusEnvelope(author types.EventAuthor, update StatusUpdate) *Envelope {
	return &Envelope{
		Event: EventMeta{
			Author:  author,
			Type:    types.EventTypeStatus,
			Variant: update.Status.String(),
		},
		Message: mustMarshal(update),
	}
}

// NewMessageEnvelope builds a message envelope for a live chat message
func NewMessageEnvelope(msg *Message) *Envelope {
	return &Envelope{
		Event: EventMeta{
			Author: types.EventAuthorClient,
			Type:   types.EventTypeMessage,
		},
		Message: mustMarshal(msg),
	}
}

// NewReactionEnvelope builds a reaction envelope carrying the full
// replacement reaction set of a message
func NewReactionEnvelope(reaction ReactionEvent) *Envelope {
	return &Envelope{
		Event: EventMeta{
			Author: types.EventAuthorClient,
			Type:   types.EventTypeReaction,
		},
		Message: mustMarshal(reaction),
	}
}

// NewMembershipEnvelope builds a welcome or user-joined envelope
func NewMembershipEnvelope(eventType types.EventType, workspaceID types.WorkspaceID) *Envelope {
	return &Envelope{
		Event: EventMeta{
			Author: types.EventAuthorServer,
			Type:   eventType,
		},
		Message: mustMarshal(MembershipEvent{Type: eventType, WorkspaceID: workspaceID}),
	}
}
