package conduit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scille-labs/invite-conduit/internal/conduit"
	conduitmem "github.com/scille-labs/invite-conduit/internal/conduit/memory"
	eventbusmem "github.com/scille-labs/invite-conduit/internal/eventbus/memory"
	"github.com/scille-labs/invite-conduit/internal/store"
	storemem "github.com/scille-labs/invite-conduit/internal/store/memory"
)

func newTestEngine(t *testing.T, maxWait time.Duration) (*conduit.Engine, store.InvitationStore, [16]byte) {
	t.Helper()
	ctx := context.Background()

	invStore := storemem.New()
	inv, err := invStore.Create(ctx, "acme", store.KindDevice, "greeter-1", "Alice", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	engine := conduit.NewEngine(invStore, conduitmem.New(), eventbusmem.New(), maxWait)
	return engine, invStore, inv.Token
}

func TestConduitExchange_State1_Symmetric(t *testing.T) {
	engine, _, token := newTestEngine(t, 2*time.Second)
	ctx := context.Background()

	greeterKey := []byte("greeter-pubkey")
	claimerKey := []byte("claimer-pubkey")

	type result struct {
		payload []byte
		err     error
	}
	greeterCh := make(chan result, 1)
	claimerCh := make(chan result, 1)

	go func() {
		p, err := engine.ConduitExchange(ctx, "acme", conduit.SideGreeter, token, conduit.State1WaitPeers, greeterKey)
		greeterCh <- result{p, err}
	}()
	go func() {
		p, err := engine.ConduitExchange(ctx, "acme", conduit.SideClaimer, token, conduit.State1WaitPeers, claimerKey)
		claimerCh <- result{p, err}
	}()

	gr := <-greeterCh
	cr := <-claimerCh

	if gr.err != nil {
		t.Fatalf("greeter ConduitExchange() error = %v", gr.err)
	}
	if cr.err != nil {
		t.Fatalf("claimer ConduitExchange() error = %v", cr.err)
	}
	if string(gr.payload) != string(claimerKey) {
		t.Errorf("expected greeter to receive claimer key, got %q", gr.payload)
	}
	if string(cr.payload) != string(greeterKey) {
		t.Errorf("expected claimer to receive greeter key, got %q", cr.payload)
	}
}

func TestConduitExchange_State4_RepeatRounds(t *testing.T) {
	engine, _, token := newTestEngine(t, 2*time.Second)
	ctx := context.Background()

	// Drive the slot to STATE_4_COMMUNICATE via a placeholder exchange
	// ("g"/"c") at every intermediate state.
	states := []conduit.State{
		conduit.State1WaitPeers,
		conduit.State21ClaimerHashedNonce,
		conduit.State22GreeterNonce,
		conduit.State23ClaimerNonce,
		conduit.State31ClaimerTrust,
		conduit.State32GreeterTrust,
	}
	for _, st := range states {
		runPair(t, engine, token, st, []byte("g"), []byte("c"))
	}

	rounds := []struct{ greeterSends, claimerSends string }{
		{"a", "A"},
		{"b", "B"},
		{"c", "C"},
	}
	for _, r := range rounds {
		gr, cr := runPair(t, engine, token, conduit.State4Communicate, []byte(r.greeterSends), []byte(r.claimerSends))
		if string(gr) != r.claimerSends {
			t.Errorf("round %q: greeter expected %q, got %q", r.greeterSends, r.claimerSends, gr)
		}
		if string(cr) != r.greeterSends {
			t.Errorf("round %q: claimer expected %q, got %q", r.greeterSends, r.greeterSends, cr)
		}
	}
}

// runPair drives one conduit_exchange round for both sides concurrently and
// returns (greeterReceived, claimerReceived).
func runPair(t *testing.T, engine *conduit.Engine, token [16]byte, state conduit.State, greeterPayload, claimerPayload []byte) ([]byte, []byte) {
	t.Helper()
	ctx := context.Background()

	type result struct {
		payload []byte
		err     error
	}
	greeterCh := make(chan result, 1)
	claimerCh := make(chan result, 1)

	go func() {
		p, err := engine.ConduitExchange(ctx, "acme", conduit.SideGreeter, token, state, greeterPayload)
		greeterCh <- result{p, err}
	}()
	go func() {
		p, err := engine.ConduitExchange(ctx, "acme", conduit.SideClaimer, token, state, claimerPayload)
		claimerCh <- result{p, err}
	}()

	gr := <-greeterCh
	cr := <-claimerCh
	if gr.err != nil {
		t.Fatalf("greeter ConduitExchange() at %s error = %v", state, gr.err)
	}
	if cr.err != nil {
		t.Fatalf("claimer ConduitExchange() at %s error = %v", state, cr.err)
	}
	return gr.payload, cr.payload
}

func TestConduitExchange_ClaimerReset_PendingClaimerSeesInvalidState(t *testing.T) {
	engine, _, token := newTestEngine(t, time.Second)
	ctx := context.Background()

	// Both complete state 1 first.
	runPair(t, engine, token, conduit.State1WaitPeers, []byte("g"), []byte("c"))

	// Claimer deposits hash H1 at state 2_1 but nobody reads it yet.
	claimerErrCh := make(chan error, 1)
	go func() {
		_, err := engine.ConduitExchange(ctx, "acme", conduit.SideClaimer, token, conduit.State21ClaimerHashedNonce, []byte("H1"))
		claimerErrCh <- err
	}()

	time.Sleep(20 * time.Millisecond)

	// Claimer "reconnects" and deposits a different hash H2 for the same
	// state: this is a reset, so the first pending claimer call should
	// come back with INVALID_STATE once the reset lands. No greeter ever
	// joins, so the second call itself ends with the peer-wait timeout.
	_, err := engine.ConduitExchange(ctx, "acme", conduit.SideClaimer, token, conduit.State21ClaimerHashedNonce, []byte("H2"))
	if !errors.Is(err, conduit.ErrPeerEventTimeout) {
		t.Fatalf("second claimer deposit: expected ErrPeerEventTimeout, got %v", err)
	}

	select {
	case err := <-claimerErrCh:
		if !errors.Is(err, conduit.ErrInvalidState) {
			t.Errorf("first claimer call: expected ErrInvalidState after the reset, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first claimer call never returned")
	}
}

func TestConduitExchange_Deleted_ReturnsAlreadyDeleted(t *testing.T) {
	engine, invStore, token := newTestEngine(t, time.Second)
	ctx := context.Background()

	if err := invStore.Delete(ctx, "acme", "greeter-1", token, time.Now(), store.ReasonCancelled); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := engine.ConduitExchange(ctx, "acme", conduit.SideGreeter, token, conduit.State1WaitPeers, []byte("g"))
	if !errors.Is(err, conduit.ErrAlreadyDeleted) {
		t.Errorf("expected ErrAlreadyDeleted, got %v", err)
	}
}

func TestConduitExchange_Timeout(t *testing.T) {
	engine, _, token := newTestEngine(t, 50*time.Millisecond)
	ctx := context.Background()

	// Only the greeter calls in; nobody completes the claimer side.
	_, err := engine.ConduitExchange(ctx, "acme", conduit.SideGreeter, token, conduit.State1WaitPeers, []byte("g"))
	if !errors.Is(err, conduit.ErrPeerEventTimeout) {
		t.Errorf("expected ErrPeerEventTimeout, got %v", err)
	}
}

func TestConduitExchange_NotFound(t *testing.T) {
	invStore := storemem.New()
	engine := conduit.NewEngine(invStore, conduitmem.New(), eventbusmem.New(), time.Second)

	var token [16]byte
	_, err := engine.ConduitExchange(context.Background(), "acme", conduit.SideGreeter, token, conduit.State1WaitPeers, []byte("g"))
	if !errors.Is(err, conduit.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
