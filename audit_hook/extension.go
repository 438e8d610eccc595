// Package audithook bridges ledger balance events to an audit trail backend.
//
// It defines a local Recorder interface so any backend can be injected at
// wiring time. NewLogRecorder writes events as structured log records.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnAccountCreated      = (*Extension)(nil)
	_ plugin.OnTokensMinted        = (*Extension)(nil)
	_ plugin.OnTokensBurned        = (*Extension)(nil)
	_ plugin.OnTokensTransferred   = (*Extension)(nil)
	_ plugin.OnBalanceAdjusted     = (*Extension)(nil)
	_ plugin.OnPermissionDenied    = (*Extension)(nil)
	_ plugin.OnInsufficientBalance = (*Extension)(nil)
	_ plugin.OnOperationFailed     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// NewLogRecorder returns a Recorder that writes each event to logger at a
// level derived from its severity.
func NewLogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, event *AuditEvent) error {
		level := slog.LevelInfo
		switch event.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityError, SeverityCritical:
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("action", event.Action),
			slog.String("resource", event.Resource),
			slog.String("category", event.Category),
			slog.String("outcome", event.Outcome),
		}
		if event.ResourceID != "" {
			attrs = append(attrs, slog.String("resource_id", event.ResourceID))
		}
		if event.Actor != "" {
			attrs = append(attrs, slog.String("actor", event.Actor))
		}
		if event.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Reason))
		}
		if len(event.Metadata) > 0 {
			meta := make([]any, 0, len(event.Metadata))
			for k, v := range event.Metadata {
				meta = append(meta, slog.Any(k, v))
			}
			attrs = append(attrs, slog.Group("metadata", meta...))
		}

		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, acct *account.Account) error {
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, acct.ID.String(), CategoryAccount, "", nil,
		"handle", acct.Handle,
	)
}

// ──────────────────────────────────────────────────
// Token hooks
// ──────────────────────────────────────────────────

// OnTokensMinted implements plugin.OnTokensMinted.
func (e *Extension) OnTokensMinted(ctx context.Context, op *account.Operation) error {
	return e.record(ctx, ActionTokensMinted, SeverityInfo, OutcomeSuccess,
		ResourceOperation, op.ID.String(), CategoryTokens, op.Actor, nil,
		"to", op.To,
		"amount", op.Amount,
		"balance", op.ToBalance,
	)
}

// OnTokensBurned implements plugin.OnTokensBurned.
func (e *Extension) OnTokensBurned(ctx context.Context, op *account.Operation) error {
	return e.record(ctx, ActionTokensBurned, SeverityInfo, OutcomeSuccess,
		ResourceOperation, op.ID.String(), CategoryTokens, op.Actor, nil,
		"from", op.From,
		"amount", op.Amount,
		"balance", op.FromBalance,
	)
}

// OnTokensTransferred implements plugin.OnTokensTransferred.
func (e *Extension) OnTokensTransferred(ctx context.Context, op *account.Operation) error {
	return e.record(ctx, ActionTokensTransferred, SeverityInfo, OutcomeSuccess,
		ResourceOperation, op.ID.String(), CategoryTokens, op.Actor, nil,
		"from", op.From,
		"to", op.To,
		"amount", op.Amount,
	)
}

// OnBalanceAdjusted implements plugin.OnBalanceAdjusted.
func (e *Extension) OnBalanceAdjusted(ctx context.Context, op *account.Operation) error {
	return e.record(ctx, ActionBalanceAdjusted, SeverityWarning, OutcomeSuccess,
		ResourceOperation, op.ID.String(), CategoryTokens, op.Actor, nil,
		"handle", op.To,
		"delta", op.Amount,
		"balance", op.ToBalance,
	)
}

// ──────────────────────────────────────────────────
// Rejection hooks
// ──────────────────────────────────────────────────

// OnPermissionDenied implements plugin.OnPermissionDenied.
func (e *Extension) OnPermissionDenied(ctx context.Context, actor string, kind account.OperationKind) error {
	return e.record(ctx, ActionPermissionDenied, SeverityWarning, OutcomeFailure,
		ResourceOperation, "", CategoryAccess, actor, nil,
		"operation", string(kind),
	)
}

// OnInsufficientBalance implements plugin.OnInsufficientBalance.
func (e *Extension) OnInsufficientBalance(ctx context.Context, kind account.OperationKind, handle string, balance, requested int64) error {
	return e.record(ctx, ActionBalanceInsufficient, SeverityInfo, OutcomeFailure,
		ResourceAccount, "", CategoryTokens, "", nil,
		"operation", string(kind),
		"handle", handle,
		"balance", balance,
		"requested", requested,
	)
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (e *Extension) OnOperationFailed(ctx context.Context, kind account.OperationKind, opErr error) error {
	return e.record(ctx, ActionOperationFailed, SeverityError, OutcomeFailure,
		ResourceOperation, "", CategoryTokens, "", opErr,
		"operation", string(kind),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category, actor string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      actor,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
