package plugin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tokenledger/account"
)

type recordingPlugin struct {
	name string

	mu     sync.Mutex
	events []string
	fail   error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) record(ev string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.fail
}

func (p *recordingPlugin) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPlugin) OnInit(_ context.Context, _ interface{}) error { return p.record("init") }
func (p *recordingPlugin) OnShutdown(_ context.Context) error            { return p.record("shutdown") }

func (p *recordingPlugin) OnAccountCreated(_ context.Context, a *account.Account) error {
	return p.record("created:" + a.Handle)
}

func (p *recordingPlugin) OnTokensMinted(_ context.Context, op *account.Operation) error {
	return p.record("minted:" + op.To)
}

func (p *recordingPlugin) OnTokensBurned(_ context.Context, op *account.Operation) error {
	return p.record("burned:" + op.From)
}

func (p *recordingPlugin) OnTokensTransferred(_ context.Context, op *account.Operation) error {
	return p.record("transferred:" + op.From + ">" + op.To)
}

func (p *recordingPlugin) OnPermissionDenied(_ context.Context, actor string, kind account.OperationKind) error {
	return p.record("denied:" + actor + ":" + string(kind))
}

func (p *recordingPlugin) OnInsufficientBalance(_ context.Context, _ account.OperationKind, handle string, _, _ int64) error {
	return p.record("insufficient:" + handle)
}

type nameOnly struct{ name string }

func (n nameOnly) Name() string { return n.name }

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nameOnly{"a"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(nameOnly{"a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}
	if r.Get("a") == nil || r.Get("missing") != nil {
		t.Fatal("Get returned unexpected result")
	}
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := NewRegistry()
	p := &recordingPlugin{name: "rec"}
	if err := r.Register(p); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(nameOnly{"bare"}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	r.EmitInit(ctx, nil)
	r.EmitAccountCreated(ctx, account.New("@alice"))
	r.EmitTokensMinted(ctx, &account.Operation{To: "@alice"})
	r.EmitTokensBurned(ctx, &account.Operation{From: "@alice"})
	r.EmitTokensTransferred(ctx, &account.Operation{From: "@alice", To: "@bob"})
	r.EmitBalanceAdjusted(ctx, &account.Operation{To: "@alice"}) // not implemented by rec
	r.EmitPermissionDenied(ctx, "@eve", account.OperationMint)
	r.EmitInsufficientBalance(ctx, account.OperationTransfer, "@bob", 0, 5)
	r.EmitOperationFailed(ctx, account.OperationMint, errors.New("boom")) // not implemented
	r.EmitShutdown(ctx)

	want := []string{
		"init",
		"created:@alice",
		"minted:@alice",
		"burned:@alice",
		"transferred:@alice>@bob",
		"denied:@eve:mint",
		"insufficient:@bob",
		"shutdown",
	}
	got := p.seen()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestEmitLogsPluginErrors(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry().WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	p := &recordingPlugin{name: "broken", fail: errors.New("nope")}
	if err := r.Register(p); err != nil {
		t.Fatal(err)
	}

	r.EmitTokensMinted(context.Background(), &account.Operation{To: "@alice"})

	if !strings.Contains(buf.String(), "plugin OnTokensMinted failed") {
		t.Fatalf("missing warning in log output: %s", buf.String())
	}
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnTokensMinted(ctx context.Context, _ *account.Operation) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestCallWithTimeout(t *testing.T) {
	r := NewRegistry().WithTimeout(10 * time.Millisecond)
	err := r.callWithTimeout(context.Background(), "slow", func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "plugin timeout: slow") {
		t.Fatalf("err = %v, want timeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r = NewRegistry()
	err = r.callWithTimeout(ctx, "slow", func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestImplementedInterfaces(t *testing.T) {
	got := implementedInterfaces(slowPlugin{})
	if len(got) != 1 || got[0] != "OnTokensMinted" {
		t.Fatalf("implementedInterfaces = %v", got)
	}
}
