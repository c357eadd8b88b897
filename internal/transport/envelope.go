package transport

import (
	"encoding/json"
	"fmt"
)

// Wire names of the request, response and broadcast types.
const (
	TypePing             = "PING"
	TypeGetHistory       = "GET_HISTORY"
	TypeGetItem          = "GET_SUMMARY_ITEM"
	TypeAddItem          = "ADD_SUMMARY_ITEM"
	TypeUpdateSummary    = "UPDATE_SUMMARY"
	TypeDeleteSummary    = "DELETE_SUMMARY"
	TypeGetCached        = "GET_CACHED_SUMMARY"
	TypeSetCached        = "SET_CACHED_SUMMARY"
	TypeCleanup          = "CLEANUP"
	TypeReleaseResources = "RELEASE_RESOURCES"

	TypeExtractMainContent = "EXTRACT_MAIN_CONTENT"

	TypeHistoryUpdated    = "HISTORY_UPDATED"
	TypeSummaryUpdated    = "SUMMARY_UPDATED"
	TypeSummaryDeleted    = "SUMMARY_DELETED"
	TypeModelLoadProgress = "MODEL_LOAD_PROGRESS"
	TypeSummaryPartial    = "SUMMARY_PARTIAL"

	// Panel commands, served by the gateway's panel.
	TypeSummarizeURL  = "SUMMARIZE_URL"
	TypeRetrySummary  = "RETRY_SUMMARY"
	TypeRemoveSummary = "REMOVE_SUMMARY"
	TypePanelStatus   = "PANEL_STATUS"

	// TypeError is the reply type of a failed request.
	TypeError = "ERROR"

	// resultSuffix is appended to a request type to form its reply type.
	resultSuffix = "_RESULT"
)

// ResultType returns the reply type of a request type.
func ResultType(requestType string) string {
	return requestType + resultSuffix
}

// Envelope is the JSON frame exchanged over the websocket gateway. ID
// correlates a reply with its request and is empty for broadcasts.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the payload of a TypeError envelope.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals payload into an envelope.
func NewEnvelope(msgType, id string, payload any) (Envelope, error) {
	env := Envelope{Type: msgType, ID: id}
	if payload == nil {
		return env, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType,
			err)
	}
	env.Payload = raw

	return env, nil
}

// ErrorEnvelope builds the reply for a failed request.
func ErrorEnvelope(id string, err error) Envelope {
	raw, _ := json.Marshal(ErrorPayload{Message: err.Error()})
	return Envelope{Type: TypeError, ID: id, Payload: raw}
}

// BroadcastEnvelope wraps a broadcast for the wire.
func BroadcastEnvelope(b Broadcast) (Envelope, error) {
	return NewEnvelope(b.BroadcastType(), "", b)
}

// EncodeRequest wraps a coordinator request for the wire.
func EncodeRequest(id string, req Request) (Envelope, error) {
	return NewEnvelope(req.MessageType(), id, req)
}

// DecodeRequest parses the coordinator request carried by env. It returns
// ErrUnknownRequestType for types outside the request union.
func DecodeRequest(env Envelope) (Request, error) {
	switch env.Type {
	case TypePing:
		return PingRequest{}, nil

	case TypeReleaseResources:
		return ReleaseResourcesRequest{}, nil

	case TypeGetHistory:
		return decodeInto[GetHistoryRequest](env)

	case TypeGetItem:
		return decodeInto[GetItemRequest](env)

	case TypeAddItem:
		return decodeInto[AddItemRequest](env)

	case TypeUpdateSummary:
		return decodeInto[UpdateSummaryRequest](env)

	case TypeDeleteSummary:
		return decodeInto[DeleteSummaryRequest](env)

	case TypeGetCached:
		return decodeInto[GetCachedRequest](env)

	case TypeSetCached:
		return decodeInto[SetCachedRequest](env)

	case TypeCleanup:
		return decodeInto[CleanupRequest](env)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequestType, env.Type)
	}
}

// decodeInto unmarshals the payload of env into a fresh T. An empty payload
// yields the zero value.
func decodeInto[T Request](env Envelope) (Request, error) {
	var req T
	if len(env.Payload) == 0 {
		return req, nil
	}

	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}

	return req, nil
}

// DecodePayload unmarshals the payload of env into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var v T
	if env.Type == TypeError {
		var e ErrorPayload
		_ = json.Unmarshal(env.Payload, &e)

		return v, &RemoteError{Message: e.Message}
	}

	if len(env.Payload) == 0 {
		return v, nil
	}

	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", env.Type, err)
	}

	return v, nil
}

// RemoteError is a failure reported by the other end of the gateway.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
