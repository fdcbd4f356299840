package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sseUpstream(t *testing.T, chunks []string, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			if delay > 0 {
				time.Sleep(delay)
			}
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func postChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/openai", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeFinal(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc), "final body must be one valid JSON document: %q", body)
	return doc
}

func messageContent(t *testing.T, doc map[string]any) string {
	t.Helper()
	choices := doc["choices"].([]any)
	require.Len(t, choices, 1)
	msg := choices[0].(map[string]any)["message"].(map[string]any)
	return msg["content"].(string)
}

func TestProxy_AssemblesStreamedResponse(t *testing.T) {
	upstream := sseUpstream(t, []string{
		`{"choices":[{"delta":{"role":"assistant","content":"Hello"}}]}`,
		`{"choices":[{"delta":{"content":" world"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`,
	}, 0)
	defer upstream.Close()

	h := NewHandler(Config{UpstreamURL: upstream.URL, APIKey: "k"})
	rec := postChat(t, h, `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeFinal(t, rec.Body.Bytes())
	require.Equal(t, "chat.completion", doc["object"])
	require.Equal(t, "Hello world", messageContent(t, doc))

	usage := doc["usage"].(map[string]any)
	require.Equal(t, float64(12), usage["total_tokens"])

	choice := doc["choices"].([]any)[0].(map[string]any)
	require.Equal(t, "stop", choice["finish_reason"])
	require.Equal(t, "assistant", choice["message"].(map[string]any)["role"])
}

func TestProxy_HeartbeatIsLeadingWhitespace(t *testing.T) {
	upstream := sseUpstream(t, []string{
		`{"choices":[{"delta":{"content":"slow"}}]}`,
	}, 80*time.Millisecond)
	defer upstream.Close()

	h := NewHandler(Config{UpstreamURL: upstream.URL, APIKey: "k", Heartbeat: 10 * time.Millisecond})
	rec := postChat(t, h, `{"messages":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, []byte(" ")), "expected heartbeat bytes before the payload")

	// Leading spaces are whitespace; the document still parses whole.
	doc := decodeFinal(t, body)
	require.Equal(t, "slow", messageContent(t, doc))
}

func TestProxy_ForcesStreamingUpstream(t *testing.T) {
	var captured map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	h := NewHandler(Config{UpstreamURL: upstream.URL, APIKey: "k"})
	rec := postChat(t, h, `{"messages":[],"stream":false,"max_tokens":777,"temperature":0.3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, true, captured["stream"])
	opts := captured["stream_options"].(map[string]any)
	require.Equal(t, true, opts["include_usage"])
	require.Equal(t, float64(777), captured["max_tokens"], "caller max_tokens preserved")
	require.Equal(t, 0.3, captured["temperature"])
}

func TestProxy_JSONRepairOnRequestedJSONFormat(t *testing.T) {
	upstream := sseUpstream(t, []string{
		`{"choices":[{"delta":{"content":"{\"a\": 1, \"b\": 2,"}}]}`,
		`{"choices":[{"delta":{"content":"}"}}]}`,
	}, 0)
	defer upstream.Close()

	h := NewHandler(Config{UpstreamURL: upstream.URL, APIKey: "k"})
	rec := postChat(t, h, `{"messages":[],"response_format":{"type":"json_object"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	content := messageContent(t, decodeFinal(t, rec.Body.Bytes()))
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(content), &parsed))
	require.Equal(t, float64(1), parsed["a"])
	require.Equal(t, float64(2), parsed["b"])
}

func TestProxy_UnrepairableContentPassesThrough(t *testing.T) {
	upstream := sseUpstream(t, []string{
		`{"choices":[{"delta":{"content":"not json at all"}}]}`,
	}, 0)
	defer upstream.Close()

	h := NewHandler(Config{UpstreamURL: upstream.URL, APIKey: "k"})
	rec := postChat(t, h, `{"messages":[],"response_format":{"type":"json_object"}}`)

	content := messageContent(t, decodeFinal(t, rec.Body.Bytes()))
	require.Equal(t, "not json at all", content, "proxy must never fabricate JSON")
}

func TestProxy_AssemblesOnDoneWithoutUpstreamClose(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"early\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
		// Hold the connection open; the proxy must not wait for EOF.
		<-r.Context().Done()
	}))
	defer upstream.Close()

	h := NewHandler(Config{UpstreamURL: upstream.URL, APIKey: "k", Deadline: 2 * time.Second})
	rec := postChat(t, h, `{"messages":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeFinal(t, rec.Body.Bytes())
	require.Equal(t, "early", messageContent(t, doc))
	require.NotEqual(t, "TIMEOUT", doc["code"])
}

func TestProxy_OptionsPreflight(t *testing.T) {
	h := NewHandler(Config{UpstreamURL: "http://unused", APIKey: "k"})
	req := httptest.NewRequest(http.MethodOptions, "/api/openai", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.Bytes())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Headers"))
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestProxy_MethodNotAllowed(t *testing.T) {
	h := NewHandler(Config{UpstreamURL: "http://unused", APIKey: "k"})
	req := httptest.NewRequest(http.MethodGet, "/api/openai", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProxy_MissingKeyIs500(t *testing.T) {
	h := NewHandler(Config{UpstreamURL: "http://unused"})
	rec := postChat(t, h, `{"messages":[]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	doc := decodeFinal(t, rec.Body.Bytes())
	require.Contains(t, doc["error"], "not configured")
}

func TestProxy_UpstreamErrorForwarded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad api key","code":"invalid_api_key"}}`)
	}))
	defer upstream.Close()

	h := NewHandler(Config{UpstreamURL: upstream.URL, APIKey: "k"})
	rec := postChat(t, h, `{"messages":[]}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	doc := decodeFinal(t, rec.Body.Bytes())
	require.Equal(t, "bad api key", doc["error"])
	require.Equal(t, "invalid_api_key", doc["code"])
}

func TestProxy_ConnectFailureIsStreamError(t *testing.T) {
	h := NewHandler(Config{UpstreamURL: "http://127.0.0.1:1", APIKey: "k"})
	rec := postChat(t, h, `{"messages":[]}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	doc := decodeFinal(t, rec.Body.Bytes())
	require.Equal(t, "STREAM_ERROR", doc["code"])
}

func TestProxy_DeadlineYieldsTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()

	h := NewHandler(Config{UpstreamURL: upstream.URL, APIKey: "k", Deadline: 30 * time.Millisecond})
	rec := postChat(t, h, `{"messages":[]}`)
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	doc := decodeFinal(t, rec.Body.Bytes())
	require.Equal(t, "TIMEOUT", doc["code"])
}

func TestAccumulator_IgnoresGarbageLines(t *testing.T) {
	acc := &StreamAccumulator{}
	acc.Feed(": keepalive comment")
	acc.Feed("event: ping")
	acc.Feed("data: this is not json")
	acc.Feed(`data: {"choices":[{"delta":{"content":"ok"}}]}`)
	require.Equal(t, "ok", acc.Content())
	require.Equal(t, "assistant", acc.Role())
	require.Equal(t, "stop", acc.FinishReason())
}
