package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/reunite-bot/reunite/internal/bot"
	"github.com/reunite-bot/reunite/internal/chain"
	"github.com/reunite-bot/reunite/internal/store"
	"github.com/reunite-bot/reunite/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Reunite state data
	DefaultStateDir = "/var/lib/reunite"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "reunite.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	waOpts := buildWhatsAppOptions(flags)
	storeOpts := buildStoreOptions(flags)
	chainOpts := buildChainOptions(flags)
	botOpts := buildBotOptions(flags)

	slog.Info("Bootstrapping Reunite with configured modules")
	slog.Debug("Module options counts", "whatsapp", len(waOpts), "store", len(storeOpts), "chain", len(chainOpts), "bot", len(botOpts))
	if err := bot.Run(waOpts, storeOpts, chainOpts, botOpts); err != nil {
		slog.Error("Reunite failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Reunite exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	ChainRPCURL    string
	EscrowAddress  string
	RewardCurrency string
	MediaUploadURL string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput       *string
	numeric        *bool
	stateDir       *string
	dbDSN          *string
	chainRPC       *string
	escrowAddress  *string
	rewardCurrency *string
	mediaUploadURL *string
	pageSize       *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:       os.Getenv("REUNITE_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ChainRPCURL:    os.Getenv("CHAIN_RPC_URL"),
		EscrowAddress:  os.Getenv("ESCROW_ADDRESS"),
		RewardCurrency: os.Getenv("REWARD_CURRENCY"),
		MediaUploadURL: os.Getenv("MEDIA_UPLOAD_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No REUNITE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"REUNITE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CHAIN_RPC_URL_SET", config.ChainRPCURL != "",
		"ESCROW_ADDRESS_SET", config.EscrowAddress != "",
		"REWARD_CURRENCY", config.RewardCurrency,
		"MEDIA_UPLOAD_URL_SET", config.MediaUploadURL != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:       flag.String("qr-output", "", "path to write login QR code"),
		numeric:        flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for Reunite data (overrides $REUNITE_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN for the case store (overrides $DATABASE_URL)"),
		chainRPC:       flag.String("chain-rpc", config.ChainRPCURL, "chain JSON-RPC endpoint (overrides $CHAIN_RPC_URL)"),
		escrowAddress:  flag.String("escrow-address", config.EscrowAddress, "escrow account address for reward pledges (overrides $ESCROW_ADDRESS)"),
		rewardCurrency: flag.String("reward-currency", config.RewardCurrency, "reward token display name (overrides $REWARD_CURRENCY)"),
		mediaUploadURL: flag.String("media-url", config.MediaUploadURL, "media host upload URL (overrides $MEDIA_UPLOAD_URL)"),
		pageSize:       flag.Int("page-size", 0, "case listing page size"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"chainRPC_set", *flags.chainRPC != "",
		"escrowAddress_set", *flags.escrowAddress != "",
		"rewardCurrency", *flags.rewardCurrency,
		"mediaUploadURL_set", *flags.mediaUploadURL != "",
		"pageSize", *flags.pageSize)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	mediaDir := filepath.Join(*flags.stateDir, "media")
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		slog.Error("Failed to create media directory", "error", err, "media_dir", mediaDir)
		return err
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.stateDir != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)))
		waOpts = append(waOpts, whatsapp.WithMediaDir(filepath.Join(*flags.stateDir, "media")))
	}
	return waOpts
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		slog.Debug("Configuring store backend", "dsn_type", store.DetectDSNType(*flags.dbDSN))
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildChainOptions constructs chain RPC client configuration options
func buildChainOptions(flags Flags) []chain.Option {
	var chainOpts []chain.Option
	if *flags.chainRPC != "" {
		chainOpts = append(chainOpts, chain.WithEndpoint(*flags.chainRPC))
	}
	return chainOpts
}

// buildBotOptions constructs bot-level configuration options
func buildBotOptions(flags Flags) []bot.Option {
	var botOpts []bot.Option
	if *flags.escrowAddress != "" {
		botOpts = append(botOpts, bot.WithEscrowAddress(*flags.escrowAddress))
	}
	if *flags.rewardCurrency != "" {
		botOpts = append(botOpts, bot.WithRewardCurrency(*flags.rewardCurrency))
	}
	if *flags.mediaUploadURL != "" {
		botOpts = append(botOpts, bot.WithMediaEndpoint(*flags.mediaUploadURL))
	}
	if *flags.pageSize > 0 {
		botOpts = append(botOpts, bot.WithPageSize(*flags.pageSize))
	}
	return botOpts
}
