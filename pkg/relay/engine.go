package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a2bot/relay/pkg/chat"
	"github.com/a2bot/relay/pkg/debug"
	"github.com/a2bot/relay/pkg/observability"
	"github.com/a2bot/relay/pkg/onebot"
	"github.com/a2bot/relay/pkg/prompt"
	"github.com/a2bot/relay/pkg/provider"
	"github.com/a2bot/relay/pkg/session"
	"github.com/a2bot/relay/pkg/store"
)

// Completer is the slice of the completion backend the engine uses.
type Completer interface {
	Complete(ctx context.Context, model string, messages []chat.Turn) provider.Result
	ListModels(ctx context.Context) ([]provider.ModelEntry, error)
}

// Sender is the slice of the OneBot API the engine uses for replies.
type Sender interface {
	SendPrivateMsg(ctx context.Context, userID int64, msg onebot.Message) error
	SendGroupMsg(ctx context.Context, groupID int64, msg onebot.Message) error
	SendGroupForwardMsg(ctx context.Context, groupID int64, nodes []onebot.Segment) error
}

// Config holds the engine settings.
type Config struct {
	// DefaultModel is used when a user has no stored preference.
	DefaultModel string

	// BotName labels forward nodes in group model listings.
	BotName string

	// CommandPrefix introduces commands, "/" by default.
	CommandPrefix string

	// HTTPClient downloads image segments. Shared with the other
	// outbound clients.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Engine routes inbound events and runs the conversation loop.
type Engine struct {
	completer Completer
	sender    Sender
	histories *session.History
	settings  *session.Settings
	prompts   *prompt.Loader
	assembler *Assembler
	locks     *session.Locker
	logger    *slog.Logger
	cfg       Config
}

var _ onebot.EventHandler = (*Engine)(nil)

// New creates an engine on top of its collaborators. The prompt loader
// may be nil when no system prompt is configured.
func New(completer Completer, sender Sender, st store.Store, prompts *prompt.Loader, cfg Config) (*Engine, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if cfg.BotName == "" {
		cfg.BotName = "A2Bot"
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		completer: completer,
		sender:    sender,
		histories: session.NewHistory(st, logger),
		settings:  session.NewSettings(st, logger),
		prompts:   prompts,
		assembler: NewAssembler(cfg.HTTPClient, logger),
		locks:     session.NewLocker(),
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// HandleEvent routes one event. Commands win over plain conversation;
// plain group messages are only answered when the bot is mentioned,
// private messages always are.
func (e *Engine) HandleEvent(ctx context.Context, ev *onebot.Event) {
	if !ev.IsMessage() {
		return
	}

	msg := ev.Message.StripMentions(ev.SelfID)

	if args, ok := splitCommand(msg, e.cfg.CommandPrefix, "chat"); ok {
		e.handleChatCommand(ctx, ev, args)
		return
	}
	if args, ok := splitCommand(msg, e.cfg.CommandPrefix, "model"); ok {
		e.handleModelCommand(ctx, ev, args)
		return
	}

	if ev.IsGroup() && !ev.Message.AddressedTo(ev.SelfID) {
		debug.Log("relay", "ignoring unaddressed group message",
			"group", ev.GroupID, "user", ev.UserID)
		return
	}

	e.converse(ctx, ev, "chat", msg)
}

// converse runs one full exchange: assemble the user turn, load the
// session, call the backend, persist, reply.
func (e *Engine) converse(ctx context.Context, ev *onebot.Event, eventType string, msg onebot.Message) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		observability.EventsTotal.WithLabelValues(eventType, outcome).Inc()
		observability.EventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	userTurn, ok := e.assembler.BuildUserTurn(ctx, msg)
	if !ok {
		outcome = "skipped"
		debug.Log("relay", "nothing usable in message", "user", ev.UserID)
		return
	}

	userID := strconv.FormatInt(ev.UserID, 10)
	var groupID string
	if ev.IsGroup() {
		groupID = strconv.FormatInt(ev.GroupID, 10)
	}
	key := session.Key(userID, groupID)

	// One exchange per session at a time; the load-complete-save cycle
	// must not interleave.
	unlock := e.locks.Lock(key)
	defer unlock()

	history := e.histories.Load(ctx, key)

	messages := make([]chat.Turn, 0, len(history)+2)
	if e.prompts != nil {
		if system, ok := e.prompts.Load(); ok {
			messages = append(messages, system)
		}
	}
	messages = append(messages, history...)
	messages = append(messages, userTurn)

	model := e.cfg.DefaultModel
	if s := e.settings.Load(ctx, userID); s.Model != "" {
		model = s.Model
	}

	res := e.completer.Complete(ctx, model, messages)
	if res.Kind != provider.ResultReply {
		outcome = res.Kind.String()
	}

	if res.Text == "" {
		outcome = "empty"
		e.logger.Warn("completion produced no text", "session", key, "model", model)
		return
	}

	// Notices ride the reply path: they are recorded like any assistant
	// turn so the stored conversation matches what the user saw.
	updated := session.AppendAndTrim(history, userTurn, chat.TextTurn(chat.RoleAssistant, res.Text))
	if err := e.histories.Save(ctx, key, updated); err != nil {
		e.logger.Error("failed to persist session history", "session", key, "error", err)
	}

	e.reply(ctx, ev, res.Text)
}

// reply sends text back on the channel the event arrived on.
func (e *Engine) reply(ctx context.Context, ev *onebot.Event, text string) {
	var err error
	if ev.IsGroup() {
		err = e.sender.SendGroupMsg(ctx, ev.GroupID, onebot.Text(text))
	} else {
		err = e.sender.SendPrivateMsg(ctx, ev.UserID, onebot.Text(text))
	}
	if err != nil {
		e.logger.Error("failed to send reply", "user", ev.UserID, "error", err)
	}
}

// splitCommand checks whether the first text segment invokes the named
// command and returns the message with the command token removed. Later
// segments (images attached to the command) are preserved.
func splitCommand(msg onebot.Message, prefix, name string) (onebot.Message, bool) {
	token := prefix + name
	for i, seg := range msg {
		if seg.Type != onebot.SegText {
			continue
		}
		text := strings.TrimLeft(seg.Data.Text, " \t")
		if !strings.HasPrefix(text, token) {
			return nil, false
		}
		rest := strings.TrimLeft(text[len(token):], " \t")

		args := make(onebot.Message, 0, len(msg))
		args = append(args, msg[:i]...)
		if rest != "" {
			args = append(args, onebot.TextSegment(rest))
		}
		args = append(args, msg[i+1:]...)
		return args, true
	}
	return nil, false
}
