package relay

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/a2bot/relay/pkg/observability"
	"github.com/a2bot/relay/pkg/onebot"
)

// Command notices shown to users.
const (
	chatUsageNotice   = "Usage: /chat <your question>"
	modelSwitchFormat = "Switched to model: %s"
	modelSwitchFailed = "Failed to save the model preference. Please try again later."
	modelListFailed   = "Failed to fetch the model list. Please try again later."
	modelListEmpty    = "No models are available right now."
	modelListSent     = "Model list sent."
)

// handleChatCommand answers "/chat <question>". The question may carry
// image segments alongside the text.
func (e *Engine) handleChatCommand(ctx context.Context, ev *onebot.Event, args onebot.Message) {
	if strings.TrimSpace(args.PlainText()) == "" {
		observability.EventsTotal.WithLabelValues("command_chat", "usage").Inc()
		e.reply(ctx, ev, chatUsageNotice)
		return
	}
	e.converse(ctx, ev, "command_chat", args)
}

// handleModelCommand switches the sender's model when an argument is
// given and lists the catalog otherwise.
func (e *Engine) handleModelCommand(ctx context.Context, ev *onebot.Event, args onebot.Message) {
	if id := strings.TrimSpace(args.PlainText()); id != "" {
		e.setModel(ctx, ev, id)
		return
	}
	e.listModels(ctx, ev)
}

// setModel stores the model preference for the sender. The identifier
// is not validated against the catalog: users may pick models the
// catalog endpoint does not advertise.
func (e *Engine) setModel(ctx context.Context, ev *onebot.Event, id string) {
	outcome := "ok"
	defer func() {
		observability.EventsTotal.WithLabelValues("command_model_set", outcome).Inc()
	}()

	userID := strconv.FormatInt(ev.UserID, 10)
	settings := e.settings.Load(ctx, userID)
	settings.Model = id
	if err := e.settings.Save(ctx, userID, settings); err != nil {
		outcome = "error"
		e.logger.Error("failed to save model preference", "user", userID, "error", err)
		e.reply(ctx, ev, modelSwitchFailed)
		return
	}

	e.logger.Info("model preference updated", "user", userID, "model", id)
	e.reply(ctx, ev, fmt.Sprintf(modelSwitchFormat, id))
}

// listModels renders the catalog. Groups get a combined forward message
// with one node per model plus a short confirmation; private chats get
// a single text reply.
func (e *Engine) listModels(ctx context.Context, ev *onebot.Event) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		observability.EventsTotal.WithLabelValues("command_model_list", outcome).Inc()
		observability.EventDuration.WithLabelValues("command_model_list").Observe(time.Since(start).Seconds())
	}()

	entries, err := e.completer.ListModels(ctx)
	if err != nil {
		outcome = "error"
		e.logger.Error("failed to fetch model catalog", "error", err)
		e.reply(ctx, ev, modelListFailed)
		return
	}
	if len(entries) == 0 {
		outcome = "empty"
		e.reply(ctx, ev, modelListEmpty)
		return
	}

	lines := make([]string, len(entries))
	for i, m := range entries {
		lines[i] = fmt.Sprintf("%s\nCapabilities: %s", m.ID, strings.Join(m.Capabilities, ", "))
	}

	if ev.IsGroup() {
		uin := strconv.FormatInt(ev.SelfID, 10)
		nodes := make([]onebot.Segment, len(lines))
		for i, line := range lines {
			nodes[i] = onebot.ForwardNode(e.cfg.BotName, uin, line)
		}
		if err := e.sender.SendGroupForwardMsg(ctx, ev.GroupID, nodes); err != nil {
			outcome = "error"
			e.logger.Error("failed to send model list", "group", ev.GroupID, "error", err)
			return
		}
		e.reply(ctx, ev, modelListSent)
		return
	}

	e.reply(ctx, ev, strings.Join(lines, "\n\n"))
}
