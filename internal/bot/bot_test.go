package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/reunite-bot/reunite/internal/engine"
	"github.com/reunite-bot/reunite/internal/flow"
	"github.com/reunite-bot/reunite/internal/geo"
	"github.com/reunite-bot/reunite/internal/i18n"
	"github.com/reunite-bot/reunite/internal/messaging"
	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/session"
	"github.com/reunite-bot/reunite/internal/sms"
	"github.com/reunite-bot/reunite/internal/store"
	"github.com/reunite-bot/reunite/internal/wallet"
)

type stubChain struct{}

func (stubChain) Balance(ctx context.Context, address string) (float64, error) { return 0, nil }
func (stubChain) SubmitTransfer(ctx context.Context, signedTx string) (string, error) {
	return "tx-test", nil
}

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, path string) (string, error) {
	return "https://media.example.com/u", nil
}

func newTestDeps(t *testing.T, svc messaging.Service) *flow.Deps {
	t.Helper()
	st := store.NewInMemoryStore()
	mgr, err := wallet.NewManager(wallet.WithStore(st), wallet.WithChain(stubChain{}), wallet.WithEscrowAddress("escrow"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	loc, err := i18n.Load()
	if err != nil {
		t.Fatalf("i18n.Load failed: %v", err)
	}
	idx, err := geo.Load()
	if err != nil {
		t.Fatalf("geo.Load failed: %v", err)
	}
	return &flow.Deps{
		Msg:            svc,
		Store:          st,
		Wallets:        mgr,
		Verifier:       sms.NewMemoryVerifier(),
		Media:          stubUploader{},
		Geo:            idx,
		Loc:            loc,
		RewardCurrency: DefaultRewardCurrency,
	}
}

func TestServeDispatchesUntilChannelCloses(t *testing.T) {
	svc := messaging.NewMockService()
	deps := newTestDeps(t, svc)
	eng, err := engine.New(session.NewInMemoryStore(),
		flow.NewIntakeConversation(deps),
		flow.NewWalletConversation(deps),
		flow.NewSettingsConversation(deps),
		flow.NewListingConversation(deps),
	)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), eng, svc, deps) }()

	now := time.Now().Unix()
	// An option event with no active session matches nothing and falls
	// through to the help reply.
	svc.Inject(models.Event{UserID: "15550001234", Kind: models.EventOption, Data: "bogus", Time: now})
	svc.Inject(models.Event{UserID: "15550001234", Kind: models.EventText, Text: "/wallet", Time: now})

	deadline := time.Now().Add(2 * time.Second)
	for len(svc.Sent()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("serve returned error: %v", err)
	}

	sent := svc.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 outbound messages, got %d", len(sent))
	}
	if !strings.Contains(sent[1].Body, "Wallet") {
		t.Errorf("expected wallet menu after /wallet, got %q", sent[1].Body)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	svc := messaging.NewMockService()
	deps := newTestDeps(t, svc)
	eng, err := engine.New(session.NewInMemoryStore(), flow.NewWalletConversation(deps))
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := serve(ctx, eng, svc, deps); err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	st, err := newStore(nil)
	if err != nil {
		t.Fatalf("newStore failed: %v", err)
	}
	if _, ok := st.(*store.InMemoryStore); !ok {
		t.Errorf("expected in-memory store, got %T", st)
	}
}

func TestNewVerifierFallsBackWithoutCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_VERIFY_SERVICE_SID", "")

	v := newVerifier()
	if _, ok := v.(*sms.MemoryVerifier); !ok {
		t.Errorf("expected in-memory verifier, got %T", v)
	}
}
