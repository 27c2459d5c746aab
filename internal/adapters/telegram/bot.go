// Package telegram answers /eat on a Telegram bot webhook.
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okian/whattoeat/internal/domain/catalog"
	"github.com/okian/whattoeat/internal/domain/model"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
	"github.com/okian/whattoeat/pkg/metrics"
)

// WebhookPath is where Telegram posts updates.
const WebhookPath = "/telegram/webhook"

// SecretHeader carries the secret token Telegram echoes on every update.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

const usage = "/eat 帮你决定今天吃什么\n/groups 看看有哪些地方"

// ErrInit is returned when the bot cannot reach Telegram on startup.
var ErrInit = errors.New("telegram init failed")

// Sender delivers messages. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Dependencies draw on behalf of chat users.
type Dependencies interface {
	Draw(ctx context.Context, source string) (types.Draw, error)
	Catalog() *catalog.Catalog
}

// Bot turns webhook updates into draws.
type Bot struct {
	sender  Sender
	parse   func(*http.Request) (*tgbotapi.Update, error)
	deps    Dependencies
	allowed map[int64]struct{}
	secret  string
	logger  logger.Logger
}

// Option applies a configuration option to the Bot.
type Option func(*Bot)

// WithAllowedUsers restricts the bot to the given user ids. Empty allows everyone.
func WithAllowedUsers(ids []int64) Option {
	return func(b *Bot) {
		for _, id := range ids {
			b.allowed[id] = struct{}{}
		}
	}
}

// WithSecretToken makes the webhook reject updates whose SecretHeader does
// not match secret. New registers the same secret with Telegram.
func WithSecretToken(secret string) Option {
	return func(b *Bot) {
		b.secret = secret
	}
}

// WithLogger sets a custom logger for the bot.
func WithLogger(l logger.Logger) Option {
	return func(b *Bot) {
		if l != nil {
			b.logger = l
		}
	}
}

// New authorizes against the Bot API and, when webhookURL is set, points
// the bot's webhook at it.
func New(ctx context.Context, token, webhookURL string, deps Dependencies, opts ...Option) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	b := NewWithSender(api, deps, opts...)
	b.parse = api.HandleUpdate
	b.logger.Info(ctx, "telegram bot authorized", logger.String("username", api.Self.UserName))

	if webhookURL != "" {
		wh, err := tgbotapi.NewWebhook(webhookURL)
		if err != nil {
			return nil, fmt.Errorf("%w: webhook url: %w", ErrInit, err)
		}
		params := tgbotapi.Params{"url": wh.URL.String()}
		if b.secret != "" {
			params["secret_token"] = b.secret
		}
		if _, err := api.MakeRequest("setWebhook", params); err != nil {
			return nil, fmt.Errorf("%w: set webhook: %w", ErrInit, err)
		}
		b.logger.Info(ctx, "telegram webhook set", logger.String("url", webhookURL))
	}
	return b, nil
}

// NewWithSender builds a bot around an existing sender.
func NewWithSender(sender Sender, deps Dependencies, opts ...Option) *Bot {
	b := &Bot{
		sender:  sender,
		parse:   decodeUpdate,
		deps:    deps,
		allowed: make(map[int64]struct{}),
		logger:  logger.Named("telegram"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register attaches the webhook route to mux.
func (b *Bot) Register(mux *http.ServeMux) {
	mux.HandleFunc(WebhookPath, b.HandleWebhook)
}

// HandleWebhook handles POST /telegram/webhook. Telegram only needs a 200;
// replies go out through the Bot API.
func (b *Bot) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if b.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(b.secret)) != 1 {
		metrics.RecordErrorByComponent("telegram", "bad_secret")
		b.logger.Warn(ctx, "telegram update with wrong secret token")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBytes)
	update, err := b.parse(r)
	if err != nil {
		metrics.RecordErrorByComponent("telegram", "bad_update")
		b.logger.Warn(ctx, "bad telegram update", logger.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if !b.isAllowed(msg.From.ID) {
		b.logger.Warn(ctx, "unauthorized telegram user",
			logger.Int64("user_id", msg.From.ID),
			logger.String("username", msg.From.UserName))
		return
	}
	reply := b.Reply(ctx, msg)
	if _, err := b.sender.Send(reply); err != nil {
		metrics.RecordErrorByComponent("telegram", "send_failed")
		b.logger.Error(ctx, "telegram send failed", logger.Int64("chat_id", msg.Chat.ID), logger.Error(err))
	}
}

func (b *Bot) isAllowed(id int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[id]
	return ok
}

// Reply builds the answer to one message.
func (b *Bot) Reply(ctx context.Context, msg *tgbotapi.Message) tgbotapi.MessageConfig {
	var text string
	switch msg.Command() {
	case "eat":
		d, err := b.deps.Draw(ctx, model.SourceTelegram)
		if err != nil {
			b.logger.Error(ctx, "telegram draw failed", logger.Error(err))
			text = "出错了, 等会儿再试试"
			break
		}
		text = FormatDraw(d)
	case "groups":
		text = FormatGroups(b.deps.Catalog())
	default:
		text = usage
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	return out
}

// FormatDraw renders a draw for chat.
func FormatDraw(d types.Draw) string {
	var sb strings.Builder
	sb.WriteString("今天吃 👉 ")
	sb.WriteString(d.Vendor)
	if d.Dish != "" {
		sb.WriteString("\n🍽 ")
		sb.WriteString(d.Dish)
	}
	if d.Group != "" {
		sb.WriteString("\n📍 ")
		sb.WriteString(d.Group)
	}
	return sb.String()
}

// FormatGroups lists groups with their vendor counts.
func FormatGroups(c *catalog.Catalog) string {
	groups := c.Groups()
	lines := make([]string, len(groups))
	for i, g := range groups {
		lines[i] = fmt.Sprintf("%s (%d)", g, len(c.InGroup(g)))
	}
	return strings.Join(lines, "\n")
}

// decodeUpdate reads an update the way the Bot API client does.
func decodeUpdate(r *http.Request) (*tgbotapi.Update, error) {
	if r.Method != http.MethodPost {
		return nil, errors.New("wrong HTTP method required POST")
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, err
	}
	return &update, nil
}
