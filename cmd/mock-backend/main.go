// Command mock-backend runs a deterministic Chat Completions server for
// exercising the relay without a real provider. It returns predictable
// responses based on request content analysis.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handlers ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	resp := classifyAndRespond(&req)
	resp.Model = req.Model
	if resp.Model == "" {
		resp.Model = "mock-model"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func classifyAndRespond(req *chatRequest) chatResponse {
	// Check for image content.
	if hasImageContent(req) {
		return makeTextResponse("I can see the image you shared. It appears to be a small red icon or symbol.")
	}

	// Check for system prompt.
	if hasSystemPrompt(req) {
		return makeTextResponse("Ahoy there, matey! Welcome aboard!")
	}

	return basicTextResponse(req)
}

func basicTextResponse(req *chatRequest) chatResponse {
	text := "Hello, nice day!"

	// Check for specific prompts.
	lastMsg := getLastUserMessage(req)
	if rest, ok := strings.CutPrefix(lastMsg, "echo:"); ok {
		text = strings.TrimSpace(rest)
	} else if strings.Contains(strings.ToLower(lastMsg), "count from 1 to 5") {
		text = "1, 2, 3, 4, 5"
	}

	return makeTextResponse(text)
}

func makeTextResponse(text string) chatResponse {
	return chatResponse{
		ID:     "chatcmpl-mock-text",
		Object: "chat.completion",
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMsg{
					Role:    "assistant",
					Content: text,
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// --- Models endpoint ---

// The fixed catalog covers the capability families the relay infers:
// plain text, vision and reasoning ids.
func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "relay-mock"},
			{"id": "mock-vision-model", "object": "model", "owned_by": "relay-mock"},
			{"id": "o1-mock", "object": "model", "owned_by": "relay-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Helpers ---

func getLastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			switch v := req.Messages[i].Content.(type) {
			case string:
				return v
			case []any:
				// Multimodal content array: find the first text part.
				for _, part := range v {
					if m, ok := part.(map[string]any); ok {
						if t, ok := m["type"].(string); ok && t == "text" {
							if text, ok := m["text"].(string); ok {
								return text
							}
						}
					}
				}
			}
		}
	}
	return ""
}

func hasImageContent(req *chatRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			if parts, ok := msg.Content.([]any); ok {
				for _, part := range parts {
					if m, ok := part.(map[string]any); ok {
						if t, ok := m["type"].(string); ok && t == "image_url" {
							return true
						}
					}
				}
			}
		}
	}
	return false
}

func hasSystemPrompt(req *chatRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			return true
		}
	}
	return false
}
