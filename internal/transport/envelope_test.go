package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/pagesum/internal/history"
)

func TestRequestEnvelope(t *testing.T) {
	t.Parallel()

	env, err := EncodeRequest("1", UpdateSummaryRequest{
		ID: "a", Summary: "s", Status: history.StatusError, Error: "e",
	})
	require.NoError(t, err)
	require.Equal(t, TypeUpdateSummary, env.Type)
	require.JSONEq(t,
		`{"id":"a","summary":"s","status":"error","error":"e"}`,
		string(env.Payload))

	req, err := DecodeRequest(env)
	require.NoError(t, err)
	require.Equal(t, UpdateSummaryRequest{
		ID: "a", Summary: "s", Status: history.StatusError, Error: "e",
	}, req)
}

func TestDecodeRequestWithoutPayload(t *testing.T) {
	t.Parallel()

	req, err := DecodeRequest(Envelope{Type: TypeGetHistory})
	require.NoError(t, err)
	require.Equal(t, GetHistoryRequest{}, req)

	req, err = DecodeRequest(Envelope{Type: TypePing})
	require.NoError(t, err)
	require.Equal(t, PingRequest{}, req)
}

func TestDecodeRequestErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeRequest(Envelope{Type: "NOPE"})
	require.ErrorIs(t, err, ErrUnknownRequestType)

	_, err = DecodeRequest(Envelope{
		Type: TypeDeleteSummary, Payload: json.RawMessage(`[1]`),
	})
	require.Error(t, err)
}

func TestBroadcastEnvelope(t *testing.T) {
	t.Parallel()

	env, err := BroadcastEnvelope(SummaryPartial{ID: "a", Text: "부분"})
	require.NoError(t, err)
	require.Equal(t, TypeSummaryPartial, env.Type)
	require.Empty(t, env.ID)

	got, err := DecodePayload[SummaryPartial](env)
	require.NoError(t, err)
	require.Equal(t, "부분", got.Text)
}

func TestErrorEnvelope(t *testing.T) {
	t.Parallel()

	env := ErrorEnvelope("7", ErrCoordinatorUnreachable)
	_, err := DecodePayload[PingResponse](env)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, ErrCoordinatorUnreachable.Error(), remote.Message)
}
