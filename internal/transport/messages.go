// Package transport defines the message contracts between the coordinator,
// the panel controllers and the extractor, plus the client and websocket
// gateway that carry them.
package transport

import (
	"errors"
	"time"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/history"
)

// CoordinatorKey is the service key of the coordinator actor.
var CoordinatorKey = actor.NewServiceKey[Request, Response]("coordinator")

// ErrUnknownRequestType is returned for messages outside the request union.
var ErrUnknownRequestType = errors.New("unknown request type")

// ErrHistoryNotLoaded is returned for GET_HISTORY while the coordinator has
// not yet read its persisted history.
var ErrHistoryNotLoaded = errors.New("history not loaded")

// Request is the sealed interface of coordinator requests.
type Request interface {
	actor.Message
	isRequest()
}

// Response is the sealed interface of coordinator responses.
type Response interface {
	isResponse()
}

// PingRequest is a liveness probe.
type PingRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (PingRequest) MessageType() string { return TypePing }
func (PingRequest) isRequest()          {}

// PingResponse answers a PingRequest.
type PingResponse struct {
	Success bool `json:"success"`
}

func (PingResponse) isResponse() {}

// GetHistoryRequest lists the newest items.
type GetHistoryRequest struct {
	actor.BaseMessage

	// Limit caps the number of items, zero returns all.
	Limit int `json:"limit,omitempty"`
}

// MessageType implements actor.Message.
func (GetHistoryRequest) MessageType() string { return TypeGetHistory }
func (GetHistoryRequest) isRequest()          {}

// GetHistoryResponse carries the requested items, newest first.
type GetHistoryResponse struct {
	History []history.SummaryItem `json:"history"`
}

func (GetHistoryResponse) isResponse() {}

// GetItemRequest looks up one item by id.
type GetItemRequest struct {
	actor.BaseMessage

	ID string `json:"id"`
}

// MessageType implements actor.Message.
func (GetItemRequest) MessageType() string { return TypeGetItem }
func (GetItemRequest) isRequest()          {}

// GetItemResponse carries the item when it exists.
type GetItemResponse struct {
	Found bool                `json:"found"`
	Item  history.SummaryItem `json:"item"`
}

func (GetItemResponse) isResponse() {}

// AddItemRequest creates a new pending item.
type AddItemRequest struct {
	actor.BaseMessage

	Item history.Draft `json:"item"`
}

// MessageType implements actor.Message.
func (AddItemRequest) MessageType() string { return TypeAddItem }
func (AddItemRequest) isRequest()          {}

// AddItemResponse carries the created item.
type AddItemResponse struct {
	Success bool                `json:"success"`
	Item    history.SummaryItem `json:"item"`
}

func (AddItemResponse) isResponse() {}

// UpdateSummaryRequest overwrites the result fields of an item.
type UpdateSummaryRequest struct {
	actor.BaseMessage

	ID      string         `json:"id"`
	Summary string         `json:"summary"`
	Status  history.Status `json:"status"`
	Error   string         `json:"error,omitempty"`
}

// MessageType implements actor.Message.
func (UpdateSummaryRequest) MessageType() string { return TypeUpdateSummary }
func (UpdateSummaryRequest) isRequest()          {}

// UpdateSummaryResponse answers an UpdateSummaryRequest. Updates of unknown
// ids succeed without effect.
type UpdateSummaryResponse struct {
	Success bool `json:"success"`
}

func (UpdateSummaryResponse) isResponse() {}

// DeleteSummaryRequest removes an item.
type DeleteSummaryRequest struct {
	actor.BaseMessage

	ID string `json:"id"`
}

// MessageType implements actor.Message.
func (DeleteSummaryRequest) MessageType() string { return TypeDeleteSummary }
func (DeleteSummaryRequest) isRequest()          {}

// DeleteSummaryResponse reports whether the item existed.
type DeleteSummaryResponse struct {
	Success bool `json:"success"`
}

func (DeleteSummaryResponse) isResponse() {}

// GetCachedRequest looks up a summary by content hash.
type GetCachedRequest struct {
	actor.BaseMessage

	Hash string `json:"contentHash"`
}

// MessageType implements actor.Message.
func (GetCachedRequest) MessageType() string { return TypeGetCached }
func (GetCachedRequest) isRequest()          {}

// GetCachedResponse carries the cached summary when present.
type GetCachedResponse struct {
	Found   bool   `json:"found"`
	Summary string `json:"summary,omitempty"`
}

func (GetCachedResponse) isResponse() {}

// SetCachedRequest stores a summary under a content hash.
type SetCachedRequest struct {
	actor.BaseMessage

	Hash    string `json:"contentHash"`
	Summary string `json:"summary"`
}

// MessageType implements actor.Message.
func (SetCachedRequest) MessageType() string { return TypeSetCached }
func (SetCachedRequest) isRequest()          {}

// SetCachedResponse answers a SetCachedRequest.
type SetCachedResponse struct {
	Success bool `json:"success"`
}

func (SetCachedResponse) isResponse() {}

// CleanupRequest drops old items.
type CleanupRequest struct {
	actor.BaseMessage

	// MaxAge overrides the configured age when positive.
	MaxAge time.Duration `json:"maxAge,omitempty"`
}

// MessageType implements actor.Message.
func (CleanupRequest) MessageType() string { return TypeCleanup }
func (CleanupRequest) isRequest()          {}

// CleanupResponse reports how many items were removed.
type CleanupResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

func (CleanupResponse) isResponse() {}

// ReleaseResourcesRequest tears down the engine session.
type ReleaseResourcesRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (ReleaseResourcesRequest) MessageType() string { return TypeReleaseResources }
func (ReleaseResourcesRequest) isRequest()          {}

// ReleaseResourcesResponse answers a ReleaseResourcesRequest.
type ReleaseResourcesResponse struct {
	Success bool `json:"success"`
}

func (ReleaseResourcesResponse) isResponse() {}
