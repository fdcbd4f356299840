// Package proxy implements the streaming chat-completion proxy: it forwards
// a request upstream with streaming forced on, keeps the client connection
// alive with heartbeat bytes, and returns one assembled non-streaming JSON
// response.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"brainlane/internal/jsonfix"
)

const (
	defaultHeartbeat = 2500 * time.Millisecond
	defaultDeadline  = 55 * time.Second
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 2048
)

// Config wires one proxy handler.
type Config struct {
	UpstreamURL string
	APIKey      string
	Heartbeat   time.Duration
	Deadline    time.Duration
	Client      *http.Client
}

type Handler struct {
	upstream  string
	apiKey    string
	heartbeat time.Duration
	deadline  time.Duration
	client    *http.Client
}

func NewHandler(cfg Config) *Handler {
	h := &Handler{
		upstream:  cfg.UpstreamURL,
		apiKey:    cfg.APIKey,
		heartbeat: cfg.Heartbeat,
		deadline:  cfg.Deadline,
		client:    cfg.Client,
	}
	if h.heartbeat <= 0 {
		h.heartbeat = defaultHeartbeat
	}
	if h.deadline <= 0 {
		h.deadline = defaultDeadline
	}
	if h.client == nil {
		h.client = &http.Client{}
	}
	return h
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	if h.apiKey == "" {
		writeError(w, http.StatusInternalServerError, "upstream API key is not configured", "")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	// Force streaming upstream regardless of what the caller asked for, and
	// request usage in the final chunk.
	body["stream"] = true
	body["stream_options"] = map[string]any{"include_usage": true}
	if _, ok := body["model"]; !ok {
		body["model"] = defaultModel
	}
	if _, ok := body["max_tokens"]; !ok {
		body["max_tokens"] = defaultMaxTokens
	}
	model, _ := body["model"].(string)
	wantJSON := wantsJSONObject(body)

	payload, err := json.Marshal(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unencodable request body", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.upstream, bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			writeError(w, http.StatusGatewayTimeout, "upstream deadline exceeded", "TIMEOUT")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error(), "STREAM_ERROR")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.forwardUpstreamError(w, resp)
		return
	}

	h.streamAndAssemble(ctx, w, resp.Body, model, wantJSON)
}

// forwardUpstreamError turns an upstream error body into a single JSON error
// object with best-effort message/code extraction.
func (h *Handler) forwardUpstreamError(w http.ResponseWriter, resp *http.Response) {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	msg := fmt.Sprintf("upstream returned status %d", resp.StatusCode)
	code := ""
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
		code = fmt.Sprint(parsed.Error.Code)
	}
	writeError(w, resp.StatusCode, msg, code)
}

// streamAndAssemble reads the upstream SSE stream while emitting heartbeat
// spaces to the client, then writes the single assembled completion JSON.
// The heartbeat bytes are whitespace, so the client's JSON parse of the full
// response body stays valid.
func (h *Handler) streamAndAssemble(ctx context.Context, w http.ResponseWriter, upstream io.Reader, model string, wantJSON bool) {
	w.Header().Set("Content-Type", "application/json")
	flusher, _ := w.(http.Flusher)

	lines := make(chan string, 16)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(upstream)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	acc := &StreamAccumulator{}
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.Write([]byte(" ")); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-ctx.Done():
			writeBody(w, errorBody("upstream deadline exceeded", "TIMEOUT"))
			return
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					log.Printf("proxy: upstream read: %v", err)
					writeBody(w, errorBody("upstream stream failed", "STREAM_ERROR"))
					return
				}
				writeBody(w, h.assemble(acc, model, wantJSON))
				return
			}
			acc.Feed(line)
			// [DONE] ends the logical stream; don't wait for upstream EOF.
			if acc.Done() {
				writeBody(w, h.assemble(acc, model, wantJSON))
				return
			}
		}
	}
}

// assemble frames the accumulated stream as one non-streaming chat
// completion document.
func (h *Handler) assemble(acc *StreamAccumulator, model string, wantJSON bool) []byte {
	content := acc.Content()
	if wantJSON {
		res := jsonfix.Repair(content)
		if res.Outcome == jsonfix.OutcomeRepaired {
			log.Printf("proxy: repaired model JSON output")
		}
		// Unparseable keeps the original text; the proxy never fabricates.
		content = res.Text
	}

	now := time.Now().Unix()
	doc := map[string]any{
		"id":      fmt.Sprintf("chatcmpl-proxy-%d", now),
		"object":  "chat.completion",
		"created": now,
		"model":   model,
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    acc.Role(),
					"content": content,
				},
				"finish_reason": acc.FinishReason(),
			},
		},
		"usage": acc.Usage(),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return errorBody("failed to encode response", "STREAM_ERROR")
	}
	return raw
}

func wantsJSONObject(body map[string]any) bool {
	rf, ok := body["response_format"].(map[string]any)
	if !ok {
		return false
	}
	t, _ := rf["type"].(string)
	return t == "json_object"
}

func errorBody(msg, code string) []byte {
	obj := map[string]any{"error": msg}
	if code != "" {
		obj["code"] = code
	}
	raw, _ := json.Marshal(obj)
	return raw
}

func writeBody(w http.ResponseWriter, body []byte) {
	if _, err := w.Write(body); err != nil {
		log.Printf("proxy: write response: %v", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeBody(w, errorBody(msg, code))
}
