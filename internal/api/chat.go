package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/soyeahso/shopchat/internal/domain"
)

// ChatRequest is one outbound chat turn.
type ChatRequest struct {
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// ChatResponse is the assistant's reply to a non-streaming turn.
type ChatResponse struct {
	Message     string           `json:"message"`
	Model       string           `json:"model"`
	Timestamp   string           `json:"timestamp"`
	Products    []domain.Product `json:"products,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Actions     []domain.Action  `json:"actions,omitempty"`
}

// Stream event types, matching the backend's SSE framing.
const (
	EventStart = "start"
	EventChunk = "chunk"
	EventError = "error"
	EventDone  = "done"
)

// StreamEvent is one decoded SSE event from /chat/stream.
type StreamEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Model string `json:"model,omitempty"`
	Error string `json:"error,omitempty"`
}

// Chat sends a non-streaming chat turn.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	httpReq, err := c.newRequest(ctx, "POST", c.chatBase+"/chat", req)
	if err != nil {
		return nil, err
	}

	var out ChatResponse
	if err := c.doJSON(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatStream sends a streaming chat turn and returns a channel of decoded
// events. The channel is closed after the terminal event. Chunks are
// delivered in arrival order.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	httpReq, err := c.newRequest(ctx, "POST", c.chatBase+"/chat/stream", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	eventChan := make(chan StreamEvent)
	go c.streamRequest(httpReq, eventChan)
	return eventChan, nil
}

func (c *Client) streamRequest(httpReq *http.Request, eventChan chan StreamEvent) {
	defer close(eventChan)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		eventChan <- StreamEvent{Type: EventError, Error: fmt.Sprintf("request failed: %v", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		eventChan <- StreamEvent{Type: EventError, Error: fmt.Sprintf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))}
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		dataStr := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if dataStr == "" {
			continue
		}
		if dataStr == "[DONE]" {
			break
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
			// Skip non-JSON keepalive lines.
			continue
		}

		switch event.Type {
		case EventDone:
			eventChan <- event
			return
		case EventStart, EventChunk, EventError:
			eventChan <- event
		}
	}

	// Stream ended without an explicit done event.
	eventChan <- StreamEvent{Type: EventDone}
}
