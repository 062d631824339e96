package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"

	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/store"
)

// mockChain records transfers and serves a fixed balance per address.
type mockChain struct {
	balances   map[string]float64
	submitted  []string
	nextTxID   string
	balanceErr error
}

func (m *mockChain) Balance(ctx context.Context, address string) (float64, error) {
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	return m.balances[address], nil
}

func (m *mockChain) SubmitTransfer(ctx context.Context, signedTx string) (string, error) {
	m.submitted = append(m.submitted, signedTx)
	return m.nextTxID, nil
}

func newTestManager(t *testing.T, chain *mockChain) (*Manager, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	m, err := NewManager(WithStore(st), WithChain(chain), WithEscrowAddress("escrow-addr"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, st
}

func TestFromMnemonicDeterministic(t *testing.T) {
	kp1, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(strings.Fields(kp1.Mnemonic)) != 12 {
		t.Errorf("expected 12-word mnemonic, got %q", kp1.Mnemonic)
	}

	kp2, err := FromMnemonic(kp1.Mnemonic)
	if err != nil {
		t.Fatalf("FromMnemonic failed: %v", err)
	}
	if kp1.Address != kp2.Address {
		t.Errorf("same mnemonic must rebuild the same address: %q vs %q", kp1.Address, kp2.Address)
	}

	payload := []byte("payload")
	sig := kp2.Sign(payload)
	if !ed25519.Verify(kp2.priv.Public().(ed25519.PublicKey), payload, sig) {
		t.Error("signature does not verify against the derived key")
	}
}

func TestFromMnemonicRejectsGarbage(t *testing.T) {
	if _, err := FromMnemonic("not a valid mnemonic at all"); err == nil {
		t.Error("expected error for invalid mnemonic")
	}
}

func TestManagerCreateOncePerUser(t *testing.T) {
	m, st := newTestManager(t, &mockChain{})

	w, err := m.Create(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if w.Address == "" || w.Mnemonic == "" {
		t.Fatalf("wallet missing address or mnemonic: %+v", w)
	}

	if _, err := m.Create(context.Background(), "u1"); !errors.Is(err, models.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate on second create, got %v", err)
	}

	stored, err := st.GetWallet("u1")
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if stored == nil || stored.Address != w.Address {
		t.Errorf("wallet not persisted: %+v", stored)
	}
}

func TestManagerBalance(t *testing.T) {
	ch := &mockChain{balances: map[string]float64{}}
	m, _ := newTestManager(t, ch)

	if _, err := m.Balance(context.Background(), "u1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound without a wallet, got %v", err)
	}

	w, err := m.Create(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ch.balances[w.Address] = 4.5

	got, err := m.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if got != 4.5 {
		t.Errorf("expected 4.5, got %v", got)
	}
}

func TestManagerEscrowTransfer(t *testing.T) {
	ch := &mockChain{balances: map[string]float64{}, nextTxID: "tx-7"}
	m, _ := newTestManager(t, ch)

	w, err := m.Create(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ch.balances[w.Address] = 3.0

	txID, err := m.EscrowTransfer(context.Background(), "u1", 2.0)
	if err != nil {
		t.Fatalf("EscrowTransfer failed: %v", err)
	}
	if txID != "tx-7" {
		t.Errorf("expected tx-7, got %q", txID)
	}
	if len(ch.submitted) != 1 {
		t.Fatalf("expected one submitted transfer, got %d", len(ch.submitted))
	}
}

func TestManagerEscrowTransferInsufficientBalance(t *testing.T) {
	ch := &mockChain{balances: map[string]float64{}}
	m, _ := newTestManager(t, ch)

	w, err := m.Create(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ch.balances[w.Address] = 1.5

	if _, err := m.EscrowTransfer(context.Background(), "u1", 2.0); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(ch.submitted) != 0 {
		t.Errorf("no transfer should be submitted on insufficient balance")
	}
}
