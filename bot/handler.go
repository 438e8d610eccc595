// Package bot turns chat commands into ledger operations and localized
// replies. It has no knowledge of the chat transport.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/i18n"
	"github.com/xraph/tokenledger/types"
)

// Ledger is the subset of *tokenledger.Ledger the handler needs.
type Ledger interface {
	Resolve(ctx context.Context, handle string) (*account.Account, error)
	Balance(ctx context.Context, handle string) (int64, error)
	Transfer(ctx context.Context, from, to string, amount int64) (*account.Operation, error)
	Mint(ctx context.Context, caller, target string, amount int64) (*account.Operation, error)
	Burn(ctx context.Context, caller, target string, amount int64) (*account.Operation, error)
	Authorize(ctx context.Context, caller string, kind account.OperationKind) error
}

var _ Ledger = (*tokenledger.Ledger)(nil)

// Message is an incoming chat message.
type Message struct {
	Username string
	Text     string
}

// Reply is the text to send back. Quote replies to the triggering message
// instead of posting a plain answer in the chat.
type Reply struct {
	Text  string
	Quote bool
}

// Handler dispatches chat commands.
type Handler struct {
	ledger  Ledger
	printer *i18n.Printer
	logger  *slog.Logger
	botName string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithBotName makes the handler ignore commands addressed to other bots.
func WithBotName(name string) Option {
	return func(h *Handler) {
		h.botName = name
	}
}

// NewHandler creates a Handler replying through printer.
func NewHandler(l Ledger, printer *i18n.Printer, opts ...Option) *Handler {
	h := &Handler{
		ledger:  l,
		printer: printer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one message. It returns nil when the message needs no
// reply: plain text and unknown commands are ignored.
func (h *Handler) Handle(ctx context.Context, msg Message) *Reply {
	cmd, ok := ParseCommand(msg.Text, h.botName)
	if !ok {
		return nil
	}

	var handle func(context.Context, string, Command) *Reply
	switch cmd.Name {
	case CmdStart:
		handle = h.start
	case CmdBalance:
		handle = h.balance
	case CmdTransfer:
		handle = h.transfer
	case CmdAddTokens:
		handle = h.addTokens
	case CmdRemoveTokens:
		handle = h.removeTokens
	case CmdHelp:
		handle = h.help
	default:
		return nil
	}

	caller := account.HandleFromUsername(msg.Username)
	if caller == "" {
		return h.answer(i18n.MsgNoUsername)
	}

	h.logger.Debug("command received", "command", cmd.Name, "caller", caller)
	return handle(ctx, caller, cmd)
}

// ──────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────

func (h *Handler) start(ctx context.Context, caller string, _ Command) *Reply {
	if _, err := h.ledger.Resolve(ctx, caller); err != nil {
		return h.internal(CmdStart, caller, err, false)
	}
	return h.answer(i18n.MsgStartRegistered)
}

func (h *Handler) balance(ctx context.Context, caller string, _ Command) *Reply {
	b, err := h.ledger.Balance(ctx, caller)
	if err != nil {
		return h.internal(CmdBalance, caller, err, false)
	}
	return h.answer(i18n.MsgBalanceCurrent, strconv.FormatInt(b, 10))
}

func (h *Handler) help(_ context.Context, _ string, _ Command) *Reply {
	return h.answer(i18n.MsgHelp)
}

func (h *Handler) transfer(ctx context.Context, caller string, cmd Command) *Reply {
	if len(cmd.Fields) != 3 {
		return h.quote(i18n.MsgTransferUsage)
	}
	to, raw := cmd.Fields[1], cmd.Fields[2]
	if !account.ValidHandle(to) {
		return h.quote(i18n.MsgTransferBadHandle)
	}
	amount, reply := h.parseAmount(raw)
	if reply != nil {
		return reply
	}

	_, err := h.ledger.Transfer(ctx, caller, to, amount)
	switch {
	case err == nil:
		return h.quote(i18n.MsgTransferDone, strconv.FormatInt(amount, 10), to, caller)
	case errors.Is(err, tokenledger.ErrInsufficientBalance):
		return h.quote(i18n.MsgTransferInsufficient)
	case errors.Is(err, tokenledger.ErrBalanceOverflow):
		return h.quote(i18n.MsgAmountTooLarge)
	default:
		return h.internal(CmdTransfer, caller, err, true)
	}
}

func (h *Handler) addTokens(ctx context.Context, caller string, cmd Command) *Reply {
	if err := h.ledger.Authorize(ctx, caller, account.OperationMint); err != nil {
		return h.quote(i18n.MsgAccessDenied)
	}
	if len(cmd.Fields) != 3 {
		return h.quote(i18n.MsgMintUsage)
	}
	target, raw := cmd.Fields[1], cmd.Fields[2]
	if !account.ValidHandle(target) {
		return h.quote(i18n.MsgTargetBadHandle)
	}
	amount, reply := h.parseAmount(raw)
	if reply != nil {
		return reply
	}

	_, err := h.ledger.Mint(ctx, caller, target, amount)
	switch {
	case err == nil:
		return h.quote(i18n.MsgMintDone, strconv.FormatInt(amount, 10), target)
	case errors.Is(err, tokenledger.ErrForbidden):
		return h.quote(i18n.MsgAccessDenied)
	case errors.Is(err, tokenledger.ErrBalanceOverflow):
		return h.quote(i18n.MsgAmountTooLarge)
	default:
		return h.internal(CmdAddTokens, caller, err, true)
	}
}

func (h *Handler) removeTokens(ctx context.Context, caller string, cmd Command) *Reply {
	if err := h.ledger.Authorize(ctx, caller, account.OperationBurn); err != nil {
		return h.quote(i18n.MsgAccessDenied)
	}
	if len(cmd.Fields) != 3 {
		return h.quote(i18n.MsgBurnUsage)
	}
	target, raw := cmd.Fields[1], cmd.Fields[2]
	if !account.ValidHandle(target) {
		return h.quote(i18n.MsgTargetBadHandle)
	}
	amount, reply := h.parseAmount(raw)
	if reply != nil {
		return reply
	}

	_, err := h.ledger.Burn(ctx, caller, target, amount)
	var ibe *tokenledger.InsufficientBalanceError
	switch {
	case err == nil:
		return h.quote(i18n.MsgBurnDone, strconv.FormatInt(amount, 10), target)
	case errors.As(err, &ibe):
		return h.quote(i18n.MsgBurnInsufficient, strconv.FormatInt(ibe.Balance, 10))
	case errors.Is(err, tokenledger.ErrForbidden):
		return h.quote(i18n.MsgAccessDenied)
	case tokenledger.IsValidation(err):
		return &Reply{Text: err.Error(), Quote: true}
	default:
		return h.internal(CmdRemoveTokens, caller, err, true)
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// parseAmount returns the amount or the reply describing why it is invalid.
func (h *Handler) parseAmount(raw string) (int64, *Reply) {
	amount, err := types.ParseAmount(raw)
	switch {
	case err == nil:
		return amount, nil
	case errors.Is(err, types.ErrAmountNotPositive):
		return 0, h.quote(i18n.MsgAmountNotPositive)
	case errors.Is(err, types.ErrAmountTooLarge):
		return 0, h.quote(i18n.MsgAmountTooLarge)
	default:
		return 0, h.quote(i18n.MsgAmountNotInteger)
	}
}

func (h *Handler) internal(cmd, caller string, err error, quote bool) *Reply {
	h.logger.Error("command failed",
		"command", cmd,
		"caller", caller,
		"error", err,
	)
	return &Reply{Text: h.printer.Sprintf(i18n.MsgInternalError), Quote: quote}
}

func (h *Handler) answer(key string, args ...any) *Reply {
	return &Reply{Text: h.printer.Sprintf(key, args...)}
}

func (h *Handler) quote(key string, args ...any) *Reply {
	return &Reply{Text: h.printer.Sprintf(key, args...), Quote: true}
}
