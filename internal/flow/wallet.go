package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/reunite-bot/reunite/internal/engine"
	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/session"
)

// Option data values used by the wallet flow.
const (
	optWalletCreate  = "wallet:create"
	optWalletBalance = "wallet:balance"
	optWalletAddress = "wallet:address"
)

// NewWalletConversation builds the custodial wallet flow: create a wallet,
// check its balance, show its deposit address.
func NewWalletConversation(d *Deps) *engine.Conversation {
	return &engine.Conversation{
		ID: models.FlowTypeWallet,
		Entry: []engine.Transition{{
			Match:  engine.MatchCommand("/wallet"),
			Handle: d.walletStart,
			Next:   []models.StateType{models.StateWalletMenu},
		}},
		States: map[models.StateType][]engine.Transition{
			models.StateWalletMenu: {
				{
					Match:  engine.MatchOptionPrefix(optWalletCreate),
					Handle: d.walletCreateAsk,
					Next:   []models.StateType{models.StateWalletCreateConfirm, models.StateEnd},
				},
				{
					Match:  engine.MatchOptionPrefix(optWalletBalance),
					Handle: d.walletBalance,
					Next:   []models.StateType{models.StateEnd},
				},
				{
					Match:  engine.MatchOptionPrefix(optWalletAddress),
					Handle: d.walletAddress,
					Next:   []models.StateType{models.StateEnd},
				},
				{
					Match:  engine.MatchNonCommand,
					Handle: d.walletStart,
					Next:   []models.StateType{models.StateWalletMenu},
				},
			},
			models.StateWalletCreateConfirm: {
				{
					Match:  engine.MatchOptionPrefix("yes"),
					Handle: d.walletCreate,
					Next:   []models.StateType{models.StateEnd},
				},
				{
					Match:  engine.MatchOptionPrefix("no"),
					Handle: d.walletCancelled,
					Next:   []models.StateType{models.StateEnd},
				},
			},
		},
		Fallback: d.cancelFallback(models.FlowTypeWallet),
	}
}

func (d *Deps) walletMenuButtons(userID string) []models.Button {
	return []models.Button{
		{Label: d.text(userID, "wallet_create"), Data: optWalletCreate},
		{Label: d.text(userID, "wallet_balance_label"), Data: optWalletBalance},
		{Label: d.text(userID, "wallet_address_label"), Data: optWalletAddress},
	}
}

func (d *Deps) walletStart(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	if err := d.sendOptions(ctx, ev.UserID, "wallet_menu", d.walletMenuButtons(ev.UserID)); err != nil {
		return "", err
	}
	return models.StateWalletMenu, nil
}

func (d *Deps) walletCreateAsk(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	existing, err := d.Wallets.Get(ctx, ev.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to check wallet: %w", err)
	}
	if existing != nil {
		if err := d.send(ctx, ev.UserID, "wallet_exists", existing.Address); err != nil {
			return "", err
		}
		return models.StateEnd, nil
	}
	if err := d.sendOptions(ctx, ev.UserID, "wallet_create_confirm", d.yesNoButtons(ev.UserID)); err != nil {
		return "", err
	}
	return models.StateWalletCreateConfirm, nil
}

func (d *Deps) walletCreate(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	w, err := d.Wallets.Create(ctx, ev.UserID)
	if errors.Is(err, models.ErrDuplicate) {
		existing, getErr := d.Wallets.Get(ctx, ev.UserID)
		if getErr != nil || existing == nil {
			return "", fmt.Errorf("failed to load existing wallet: %w", getErr)
		}
		if err := d.send(ctx, ev.UserID, "wallet_exists", existing.Address); err != nil {
			return "", err
		}
		return models.StateEnd, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create wallet: %w", err)
	}
	if err := d.send(ctx, ev.UserID, "wallet_created", w.Address); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

func (d *Deps) walletCancelled(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	if err := d.send(ctx, ev.UserID, "cancelled"); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

func (d *Deps) walletBalance(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	balance, err := d.Wallets.Balance(ctx, ev.UserID)
	if errors.Is(err, models.ErrNotFound) {
		if err := d.send(ctx, ev.UserID, "wallet_missing"); err != nil {
			return "", err
		}
		return models.StateEnd, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch balance: %w", err)
	}
	if err := d.send(ctx, ev.UserID, "wallet_balance", balance, d.RewardCurrency); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

func (d *Deps) walletAddress(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	w, err := d.Wallets.Get(ctx, ev.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load wallet: %w", err)
	}
	if w == nil {
		if err := d.send(ctx, ev.UserID, "wallet_missing"); err != nil {
			return "", err
		}
		return models.StateEnd, nil
	}
	if err := d.send(ctx, ev.UserID, "wallet_address", w.Address); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}
