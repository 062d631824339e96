package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reunite-bot/reunite/internal/chain"
	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/store"
)

// ErrInsufficientBalance indicates the wallet cannot cover a transfer.
var ErrInsufficientBalance = errors.New("wallet: insufficient balance")

// Manager provides custodial wallet operations backed by the store and the
// chain node.
type Manager struct {
	store         store.Store
	chain         chain.Client
	escrowAddress string
}

// Opts holds configuration options for Manager.
type Opts struct {
	Store         store.Store
	Chain         chain.Client
	EscrowAddress string
}

// Option defines a configuration option for Manager.
type Option func(*Opts)

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithChain sets the chain client.
func WithChain(c chain.Client) Option {
	return func(o *Opts) { o.Chain = c }
}

// WithEscrowAddress sets the destination address for reward escrow.
func WithEscrowAddress(addr string) Option {
	return func(o *Opts) { o.EscrowAddress = addr }
}

// NewManager creates a wallet manager.
func NewManager(opts ...Option) (*Manager, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("wallet manager requires a store")
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("wallet manager requires a chain client")
	}
	if cfg.EscrowAddress == "" {
		return nil, fmt.Errorf("wallet manager requires an escrow address")
	}
	return &Manager{store: cfg.Store, chain: cfg.Chain, escrowAddress: cfg.EscrowAddress}, nil
}

// EscrowAddress returns the configured escrow destination.
func (m *Manager) EscrowAddress() string {
	return m.escrowAddress
}

// Get returns the user's wallet, or nil when none exists.
func (m *Manager) Get(ctx context.Context, userID string) (*models.Wallet, error) {
	return m.store.GetWallet(userID)
}

// Create generates and persists a wallet for the user. A user holds at most
// one wallet; a second create fails with models.ErrDuplicate.
func (m *Manager) Create(ctx context.Context, userID string) (*models.Wallet, error) {
	existing, err := m.store.GetWallet(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing wallet: %w", err)
	}
	if existing != nil {
		return nil, models.ErrDuplicate
	}

	kp, err := Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet: %w", err)
	}
	w := models.Wallet{
		UserID:    userID,
		Address:   kp.Address,
		Mnemonic:  kp.Mnemonic,
		CreatedAt: time.Now(),
	}
	if err := m.store.SaveWallet(w); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}
	slog.Info("Manager.Create wallet created", "user", userID, "address", kp.Address)
	return &w, nil
}

// Balance returns the on-chain balance of the user's wallet.
func (m *Manager) Balance(ctx context.Context, userID string) (float64, error) {
	w, err := m.store.GetWallet(userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load wallet: %w", err)
	}
	if w == nil {
		return 0, models.ErrNotFound
	}
	return m.chain.Balance(ctx, w.Address)
}

// transferPayload is the canonical form signed and submitted to the node.
type transferPayload struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Nonce  int64   `json:"nonce"`
}

// EscrowTransfer moves the reward amount from the user's wallet into escrow,
// returning the accepted transaction ID. The balance is re-checked before
// signing so a spent wallet fails fast with ErrInsufficientBalance.
func (m *Manager) EscrowTransfer(ctx context.Context, userID string, amount float64) (string, error) {
	w, err := m.store.GetWallet(userID)
	if err != nil {
		return "", fmt.Errorf("failed to load wallet: %w", err)
	}
	if w == nil {
		return "", models.ErrNotFound
	}

	balance, err := m.chain.Balance(ctx, w.Address)
	if err != nil {
		return "", fmt.Errorf("failed to check balance: %w", err)
	}
	if balance < amount {
		slog.Warn("Manager.EscrowTransfer insufficient balance", "user", userID, "balance", balance, "amount", amount)
		return "", ErrInsufficientBalance
	}

	kp, err := FromMnemonic(w.Mnemonic)
	if err != nil {
		return "", fmt.Errorf("failed to rebuild keypair: %w", err)
	}

	payload, err := json.Marshal(transferPayload{
		From:   w.Address,
		To:     m.escrowAddress,
		Amount: amount,
		Nonce:  time.Now().UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer: %w", err)
	}
	signed := append(payload, kp.Sign(payload)...)

	txID, err := m.chain.SubmitTransfer(ctx, hex.EncodeToString(signed))
	if err != nil {
		return "", fmt.Errorf("failed to submit transfer: %w", err)
	}
	slog.Info("Manager.EscrowTransfer accepted", "user", userID, "amount", amount, "tx", txID)
	return txID, nil
}
