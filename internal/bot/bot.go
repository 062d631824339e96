// Package bot wires the Reunite modules together and runs the event loop.
//
// It builds the storage backend from the configured DSN, connects the
// WhatsApp transport, the chain RPC client and the SMS verifier, registers
// the conversations with the engine and then serves inbound events until the
// process is signalled to stop.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/reunite-bot/reunite/internal/chain"
	"github.com/reunite-bot/reunite/internal/engine"
	"github.com/reunite-bot/reunite/internal/flow"
	"github.com/reunite-bot/reunite/internal/geo"
	"github.com/reunite-bot/reunite/internal/i18n"
	"github.com/reunite-bot/reunite/internal/media"
	"github.com/reunite-bot/reunite/internal/messaging"
	"github.com/reunite-bot/reunite/internal/session"
	"github.com/reunite-bot/reunite/internal/sms"
	"github.com/reunite-bot/reunite/internal/store"
	"github.com/reunite-bot/reunite/internal/wallet"
	"github.com/reunite-bot/reunite/internal/whatsapp"
)

// DefaultRewardCurrency is the reward denomination used when none is
// configured.
const DefaultRewardCurrency = "RUN"

// Opts holds bot-level configuration options.
type Opts struct {
	EscrowAddress  string
	RewardCurrency string
	MediaEndpoint  string
	PageSize       int
}

// Option defines a bot-level configuration option.
type Option func(*Opts)

// WithEscrowAddress sets the escrow account rewards are pledged to.
func WithEscrowAddress(addr string) Option {
	return func(o *Opts) { o.EscrowAddress = addr }
}

// WithRewardCurrency sets the display name of the reward token.
func WithRewardCurrency(currency string) Option {
	return func(o *Opts) { o.RewardCurrency = currency }
}

// WithMediaEndpoint sets the media host's upload URL.
func WithMediaEndpoint(url string) Option {
	return func(o *Opts) { o.MediaEndpoint = url }
}

// WithPageSize sets the case listing page size.
func WithPageSize(n int) Option {
	return func(o *Opts) { o.PageSize = n }
}

// Run assembles the modules from the given option sets and serves events
// until the process receives SIGINT or SIGTERM.
func Run(waOpts []whatsapp.Option, storeOpts []store.Option, chainOpts []chain.Option, botOpts []Option) error {
	var cfg Opts
	for _, opt := range botOpts {
		opt(&cfg)
	}
	if cfg.EscrowAddress == "" {
		cfg.EscrowAddress = os.Getenv("ESCROW_ADDRESS")
	}
	if cfg.RewardCurrency == "" {
		cfg.RewardCurrency = os.Getenv("REWARD_CURRENCY")
	}
	if cfg.RewardCurrency == "" {
		cfg.RewardCurrency = DefaultRewardCurrency
	}
	if cfg.MediaEndpoint == "" {
		cfg.MediaEndpoint = os.Getenv("MEDIA_UPLOAD_URL")
	}
	if cfg.EscrowAddress == "" {
		return fmt.Errorf("escrow address not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	chainClient, err := chain.NewRPCClient(chainOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize chain client: %w", err)
	}

	wallets, err := wallet.NewManager(
		wallet.WithStore(st),
		wallet.WithChain(chainClient),
		wallet.WithEscrowAddress(cfg.EscrowAddress),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize wallet manager: %w", err)
	}

	uploader, err := media.NewHTTPUploader(media.WithEndpoint(cfg.MediaEndpoint))
	if err != nil {
		return fmt.Errorf("failed to initialize media uploader: %w", err)
	}

	loc, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("failed to load locales: %w", err)
	}
	geoIdx, err := geo.Load()
	if err != nil {
		return fmt.Errorf("failed to load geography data: %w", err)
	}

	waClient, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize whatsapp client: %w", err)
	}
	msgService := messaging.NewWhatsAppService(waClient)

	deps := &flow.Deps{
		Msg:            msgService,
		Store:          st,
		Wallets:        wallets,
		Verifier:       newVerifier(),
		Media:          uploader,
		Geo:            geoIdx,
		Loc:            loc,
		PageSize:       cfg.PageSize,
		RewardCurrency: cfg.RewardCurrency,
	}

	eng, err := engine.New(session.NewInMemoryStore(),
		flow.NewIntakeConversation(deps),
		flow.NewWalletConversation(deps),
		flow.NewSettingsConversation(deps),
		flow.NewListingConversation(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()

	slog.Info("bot.Run serving events", "currency", cfg.RewardCurrency, "escrow", cfg.EscrowAddress)
	return serve(ctx, eng, msgService, deps)
}

// newStore picks the storage backend from the configured DSN. An empty DSN
// falls back to the in-memory store.
func newStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("bot.newStore: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Info("bot.newStore: using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Info("bot.newStore: using SQLite store", "path", cfg.DSN)
	return store.NewSQLiteStore(storeOpts...)
}

// newVerifier builds the Twilio verifier when credentials are configured,
// otherwise falls back to the in-memory verifier. The in-memory verifier
// never delivers real SMS, so it is only suitable for development.
func newVerifier() sms.Verifier {
	verifier, err := sms.NewTwilioVerifier()
	if err != nil {
		slog.Warn("bot.newVerifier: Twilio not configured, using in-memory verifier", "error", err)
		return sms.NewMemoryVerifier()
	}
	slog.Info("bot.newVerifier: using Twilio Verify")
	return verifier
}

// serve dispatches inbound events one at a time until the context is
// cancelled or the event channel closes. Serialized dispatch keeps session
// mutations race-free without per-user locking.
func serve(ctx context.Context, eng *engine.Engine, svc messaging.Service, deps *flow.Deps) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("bot.serve: shutting down", "reason", ctx.Err())
			return nil
		case ev, ok := <-svc.Events():
			if !ok {
				slog.Info("bot.serve: event channel closed")
				return nil
			}
			if err := eng.Dispatch(ctx, ev); err != nil {
				if errors.Is(err, engine.ErrNoMatch) {
					if helpErr := deps.Help(ctx, ev.UserID); helpErr != nil {
						slog.Error("bot.serve: failed to send help", "error", helpErr, "user", ev.UserID)
					}
					continue
				}
				slog.Error("bot.serve: dispatch failed", "error", err, "user", ev.UserID, "kind", ev.Kind)
				if apologyErr := deps.Apologize(ctx, ev.UserID); apologyErr != nil {
					slog.Error("bot.serve: failed to send apology", "error", apologyErr, "user", ev.UserID)
				}
			}
		}
	}
}
