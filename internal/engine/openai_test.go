package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// newCompletionServer serves an OpenAI compatible API that streams the
// given deltas for every chat completion.
func newCompletionServer(t *testing.T, deltas []string) (*httptest.Server,
	*[]map[string]any) {

	t.Helper()

	var requests []map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"test-model","object":"model",`+
			`"created":1,"owned_by":"local"}`)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter,
		r *http.Request) {

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requests = append(requests, body)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for _, d := range deltas {
			chunk := map[string]any{
				"id":      "chunk",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   "test-model",
				"choices": []map[string]any{{
					"index": 0,
					"delta": map[string]any{"content": d},
				}},
			}
			raw, err := json.Marshal(chunk)
			require.NoError(t, err)

			fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		}

		fmt.Fprint(w, `data: {"id":"chunk","object":"chat.completion.chunk",`+
			`"created":1,"model":"test-model","choices":[],`+
			`"usage":{"prompt_tokens":10,"completion_tokens":3,`+
			`"total_tokens":13}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, &requests
}

func TestOpenAIBackendStreams(t *testing.T) {
	t.Parallel()

	srv, requests := newCompletionServer(t, []string{"요약", "입니다."})

	backend := NewOpenAIBackend(OpenAIConfig{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "test",
		Model:   "test-model",
	}, nil)
	m := NewManager(DefaultConfig(), backend, nil)
	require.NoError(t, m.EnsureReady(context.Background()))
	require.Equal(t, 1.0, m.Status().Progress)

	partials, terminal := collect(
		t, m.Summarize(context.Background(), "본문"),
	)
	require.Equal(t, []string{"요약", "요약입니다."}, partials)
	require.Equal(t, DoneEvent{Text: "요약입니다."}, terminal)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	require.Equal(t, "test-model", req["model"])
	require.Equal(t, true, req["stream"])
	require.InDelta(t, DefaultTemperature, req["temperature"], 1e-9)
	require.EqualValues(t, DefaultMaxTokens, req["max_tokens"])

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)
	require.Equal(t, "user", user["role"])
	require.Equal(t, UserPrefix+"본문", user["content"])
}

func TestOpenAIBackendProbeFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	backend := NewOpenAIBackend(OpenAIConfig{
		BaseURL: srv.URL + "/v1/",
		Model:   "missing",
	}, nil)

	_, err := backend.Open(context.Background(), func(float64) {})
	require.ErrorContains(t, err, "probe model")
}
