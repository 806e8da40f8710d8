package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/a2bot/relay/pkg/chat"
	"github.com/a2bot/relay/pkg/onebot"
	"github.com/a2bot/relay/pkg/prompt"
	"github.com/a2bot/relay/pkg/provider"
	"github.com/a2bot/relay/pkg/relay"
	"github.com/a2bot/relay/pkg/store/memory"
)

func TestPrivateMessageConversation(t *testing.T) {
	testEnv.BotAPI.reset()

	resp := postEvent(t, privateMessage(21001, "echo: hello relay"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	calls := testEnv.BotAPI.waitForCalls(t, 1)
	call := calls[0]
	if call.Action != "send_private_msg" {
		t.Errorf("action = %q, want %q", call.Action, "send_private_msg")
	}
	if call.UserID != 21001 {
		t.Errorf("user_id = %d, want 21001", call.UserID)
	}
	if call.text() != "hello relay" {
		t.Errorf("reply = %q, want %q", call.text(), "hello relay")
	}

	// Both sides of the exchange are persisted under the session key.
	turns := loadHistory(t, "21001")
	if len(turns) != 2 {
		t.Fatalf("history length = %d, want 2", len(turns))
	}
	if turns[0].Role != chat.RoleUser || turns[0].Text != "echo: hello relay" {
		t.Errorf("turns[0] = %q %q, want user %q", turns[0].Role, turns[0].Text, "echo: hello relay")
	}
	if turns[1].Role != chat.RoleAssistant || turns[1].Text != "hello relay" {
		t.Errorf("turns[1] = %q %q, want assistant %q", turns[1].Role, turns[1].Text, "hello relay")
	}
}

func TestChatCommand(t *testing.T) {
	testEnv.BotAPI.reset()

	resp := postEvent(t, privateMessage(21002, "/chat echo: from command"))
	resp.Body.Close()

	calls := testEnv.BotAPI.waitForCalls(t, 1)
	if calls[0].text() != "from command" {
		t.Errorf("reply = %q, want %q", calls[0].text(), "from command")
	}
}

func TestChatCommandUsageNotice(t *testing.T) {
	testEnv.BotAPI.reset()

	resp := postEvent(t, privateMessage(21003, "/chat   "))
	resp.Body.Close()

	calls := testEnv.BotAPI.waitForCalls(t, 1)
	if calls[0].text() != "Usage: /chat <your question>" {
		t.Errorf("reply = %q, want usage notice", calls[0].text())
	}

	// Usage notices start no conversation.
	if _, err := testEnv.Store.Load(context.Background(), "21003"); err == nil {
		t.Error("usage notice created a session history")
	}
}

func TestGroupMentionReply(t *testing.T) {
	testEnv.BotAPI.reset()

	resp := postEvent(t, groupMessage(21004, atSeg(testSelfID), textSeg(" echo: group hello")))
	resp.Body.Close()

	calls := testEnv.BotAPI.waitForCalls(t, 1)
	call := calls[0]
	if call.Action != "send_group_msg" {
		t.Errorf("action = %q, want %q", call.Action, "send_group_msg")
	}
	if call.GroupID != testGroupID {
		t.Errorf("group_id = %d, want %d", call.GroupID, testGroupID)
	}
	if call.text() != "group hello" {
		t.Errorf("reply = %q, want %q", call.text(), "group hello")
	}

	// Group sessions are keyed per member.
	turns := loadHistory(t, fmt.Sprintf("%d_21004", testGroupID))
	if len(turns) != 2 {
		t.Fatalf("history length = %d, want 2", len(turns))
	}
	if turns[0].Text != "echo: group hello" {
		t.Errorf("turns[0].Text = %q, want mention stripped", turns[0].Text)
	}
}

func TestUnaddressedGroupMessageIgnored(t *testing.T) {
	testEnv.BotAPI.reset()

	resp := postEvent(t, groupMessage(21005, textSeg("echo: nobody asked you")))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	// Dispatch is asynchronous; give a reply time to arrive before
	// asserting none did.
	time.Sleep(150 * time.Millisecond)
	if calls := testEnv.BotAPI.snapshot(); len(calls) != 0 {
		t.Errorf("expected no bot API calls, got %d", len(calls))
	}
	if _, err := testEnv.Store.Load(context.Background(), fmt.Sprintf("%d_21005", testGroupID)); err == nil {
		t.Error("ignored message created a session history")
	}
}

func TestGroupChatCommandWithoutMention(t *testing.T) {
	testEnv.BotAPI.reset()

	resp := postEvent(t, groupMessage(21006, textSeg("/chat echo: no mention needed")))
	resp.Body.Close()

	calls := testEnv.BotAPI.waitForCalls(t, 1)
	if calls[0].Action != "send_group_msg" {
		t.Errorf("action = %q, want %q", calls[0].Action, "send_group_msg")
	}
	if calls[0].text() != "no mention needed" {
		t.Errorf("reply = %q, want %q", calls[0].text(), "no mention needed")
	}
}

func TestSystemPromptChangesReply(t *testing.T) {
	testEnv.BotAPI.reset()

	// A separate engine with a prompt file, sharing the mock peers.
	promptPath := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(promptPath, []byte("You are a pirate."), 0o644); err != nil {
		t.Fatalf("writing prompt file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := provider.NewClient(provider.Config{
		BaseURL: testEnv.MockBackend.URL + "/v1",
		APIKey:  "test-key",
		Logger:  logger,
	})
	bot := onebot.NewClient(onebot.ClientConfig{
		APIURL: testEnv.BotAPI.server.URL,
		Logger: logger,
	})

	eng, err := relay.New(backend, bot, memory.New(), prompt.NewLoader(promptPath, logger), relay.Config{
		DefaultModel: "mock-model",
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	srv := httptest.NewServer(onebot.NewServer(eng, onebot.WithLogger(logger)).Handler())
	defer srv.Close()

	event := privateMessage(21007, "hello")
	data := marshalEvent(t, event)
	resp, err := http.Post(srv.URL+"/", "application/json", data)
	if err != nil {
		t.Fatalf("POST event: %v", err)
	}
	resp.Body.Close()

	calls := testEnv.BotAPI.waitForCalls(t, 1)
	if calls[0].text() != "Ahoy there, matey! Welcome aboard!" {
		t.Errorf("reply = %q, want the system prompt response", calls[0].text())
	}
}

func TestBackendFailureNotice(t *testing.T) {
	testEnv.BotAPI.reset()

	resp := postEvent(t, privateMessage(21008, "please explode"))
	resp.Body.Close()

	calls := testEnv.BotAPI.waitForCalls(t, 1)
	want := "The OpenAI API request failed (status 503). Please try again later."
	if calls[0].text() != want {
		t.Errorf("reply = %q, want %q", calls[0].text(), want)
	}

	// The notice rides the reply path and lands in the history too.
	turns := loadHistory(t, "21008")
	if len(turns) != 2 {
		t.Fatalf("history length = %d, want 2", len(turns))
	}
	if turns[1].Role != chat.RoleAssistant || turns[1].Text != want {
		t.Errorf("turns[1] = %q %q, want the failure notice", turns[1].Role, turns[1].Text)
	}
}
