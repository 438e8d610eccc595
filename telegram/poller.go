// Package telegram connects the command handler to the Telegram Bot API by
// long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/tokenledger/bot"
)

// Defaults for a Poller.
const (
	DefaultWorkers     = 8
	DefaultPollTimeout = 60
)

// Client is the subset of *tgbotapi.BotAPI the poller uses.
type Client interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ Client = (*tgbotapi.BotAPI)(nil)

// Handler processes one chat message.
type Handler interface {
	Handle(ctx context.Context, msg bot.Message) *bot.Reply
}

var _ Handler = (*bot.Handler)(nil)

// NewClient connects to the Bot API with token and routes the library's
// own log output through logger.
func NewClient(token string, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	if err := tgbotapi.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn)); err != nil {
		return nil, fmt.Errorf("telegram: set logger: %w", err)
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return api, nil
}

// Poller receives updates and dispatches messages to a Handler on a
// bounded pool of goroutines.
type Poller struct {
	client  Client
	handler Handler
	logger  *slog.Logger

	workers     int
	pollTimeout int
	skipUpdates bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithWorkers sets how many messages are handled concurrently.
func WithWorkers(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPollTimeout sets the long-poll timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(p *Poller) {
		if seconds >= 0 {
			p.pollTimeout = seconds
		}
	}
}

// WithSkipUpdates drops updates that queued up while the bot was offline.
func WithSkipUpdates(skip bool) Option {
	return func(p *Poller) {
		p.skipUpdates = skip
	}
}

// NewPoller creates a Poller.
func NewPoller(client Client, handler Handler, opts ...Option) *Poller {
	p := &Poller{
		client:      client,
		handler:     handler,
		logger:      slog.Default(),
		workers:     DefaultWorkers,
		pollTimeout: DefaultPollTimeout,
		skipUpdates: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled or the update channel closes, then waits
// for in-flight messages to finish.
func (p *Poller) Run(ctx context.Context) error {
	if p.skipUpdates {
		if _, err := p.client.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
			return fmt.Errorf("telegram: drop pending updates: %w", err)
		}
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.pollTimeout
	cfg.AllowedUpdates = []string{"message"}
	updates := p.client.GetUpdatesChan(cfg)

	p.logger.Info("telegram polling started",
		"workers", p.workers,
		"poll_timeout", p.pollTimeout,
		"skip_updates", p.skipUpdates,
	)

	// Handlers outlive ctx so that accepted commands complete.
	handleCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(p.workers)

loop:
	for {
		select {
		case <-ctx.Done():
			p.client.StopReceivingUpdates()
			break loop
		case u, ok := <-updates:
			if !ok {
				break loop
			}
			if u.Message == nil {
				continue
			}
			m := u.Message
			g.Go(func() error {
				p.handle(handleCtx, m)
				return nil
			})
		}
	}

	_ = g.Wait() //nolint:errcheck // handlers never return errors
	p.logger.Info("telegram polling stopped")
	return nil
}

func (p *Poller) handle(ctx context.Context, m *tgbotapi.Message) {
	var username string
	if m.From != nil {
		username = m.From.UserName
	}

	reply := p.handler.Handle(ctx, bot.Message{Username: username, Text: m.Text})
	if reply == nil || m.Chat == nil {
		return
	}

	out := tgbotapi.NewMessage(m.Chat.ID, reply.Text)
	if reply.Quote {
		out.ReplyToMessageID = m.MessageID
		out.AllowSendingWithoutReply = true
	}
	if _, err := p.client.Send(out); err != nil {
		p.logger.Error("telegram: send reply failed",
			"chat_id", m.Chat.ID,
			"message_id", m.MessageID,
			"error", err,
		)
	}
}
