package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/api"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/contacts"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/conversation"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/flow"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/followup"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/genai"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/lockfile"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/messaging"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/scheduler"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/telnyx"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/twiliosms"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for outreach state data
	DefaultStateDir = "/var/lib/outreach"
	// DefaultContactsFileName is the default contacts file, kept in the
	// legacy contacts.json layout.
	DefaultContactsFileName = "contacts.json"
	// DefaultMediaURL is the agent profile card attached to link-bearing
	// replies when no MEDIA_URL is configured.
	DefaultMediaURL = "https://i.ibb.co/G3nk5LcK/Screenshot-2025-04-26-at-6-35-21-PM.png"
	// DefaultProvider selects the SMS backend when SMS_PROVIDER is unset.
	DefaultProvider = "telnyx"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Hold the state directory lock for the life of the process so two
	// instances cannot rewrite the same contact list.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(flags); err != nil {
		slog.Error("Outreach server failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("Outreach server exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	ContactsDSN      string
	Provider         string
	OpenAIKey        string
	OpenAIModel      string
	APIAddr          string
	FollowUpCron     string
	MediaURL         string
	AttachmentPolicy string
}

// Flags holds command line flag values
type Flags struct {
	stateDir         *string
	contactsDSN      *string
	provider         *string
	openaiKey        *string
	openaiModel      *string
	apiAddr          *string
	followupCron     *string
	mediaURL         *string
	attachmentPolicy *string
}

// initializeLogger sets up structured logging. DEBUG=true lowers the level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		StateDir:         os.Getenv("OUTREACH_STATE_DIR"),
		ContactsDSN:      os.Getenv("CONTACTS_DSN"),
		Provider:         os.Getenv("SMS_PROVIDER"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		APIAddr:          os.Getenv("API_ADDR"),
		FollowUpCron:     os.Getenv("FOLLOWUP_SCHEDULE"),
		MediaURL:         os.Getenv("MEDIA_URL"),
		AttachmentPolicy: os.Getenv("ATTACHMENT_POLICY"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No OUTREACH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// DATABASE_URL is honored as a fallback for deployments that already
	// export it.
	if config.ContactsDSN == "" {
		config.ContactsDSN = os.Getenv("DATABASE_URL")
	}
	// With no database configured, keep contacts in the legacy JSON file
	// inside the state directory.
	if config.ContactsDSN == "" {
		config.ContactsDSN = filepath.Join(config.StateDir, DefaultContactsFileName)
		slog.Debug("No contacts DSN provided, defaulting to JSON file", "path", config.ContactsDSN)
	}

	if config.Provider == "" {
		config.Provider = DefaultProvider
	}
	if config.MediaURL == "" {
		config.MediaURL = DefaultMediaURL
	}
	if config.FollowUpCron == "" {
		config.FollowUpCron = scheduler.DefaultFollowUpSchedule
	}

	slog.Debug("environment variables loaded",
		"OUTREACH_STATE_DIR", config.StateDir,
		"CONTACTS_DSN_SET", config.ContactsDSN != "",
		"SMS_PROVIDER", config.Provider,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"FOLLOWUP_SCHEDULE", config.FollowUpCron,
		"ATTACHMENT_POLICY", config.AttachmentPolicy)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:         flag.String("state-dir", config.StateDir, "state directory for outreach data (overrides $OUTREACH_STATE_DIR)"),
		contactsDSN:      flag.String("contacts-dsn", config.ContactsDSN, "contacts store DSN: Postgres URL, .json file, or SQLite path (overrides $CONTACTS_DSN or $DATABASE_URL)"),
		provider:         flag.String("sms-provider", config.Provider, "SMS provider backend: telnyx or twilio (overrides $SMS_PROVIDER)"),
		openaiKey:        flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:      flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:          flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		followupCron:     flag.String("followup-cron", config.FollowUpCron, "cron schedule for the daily follow-up run (overrides $FOLLOWUP_SCHEDULE)"),
		mediaURL:         flag.String("media-url", config.MediaURL, "media attachment URL for link-bearing replies (overrides $MEDIA_URL)"),
		attachmentPolicy: flag.String("attachment-policy", config.AttachmentPolicy, "attachment policy: on_link, once_per_sender, or never (overrides $ATTACHMENT_POLICY)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"contactsDSN_set", *flags.contactsDSN != "",
		"provider", *flags.provider,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"followupCron", *flags.followupCron)

	// Keep the contacts file inside the state directory when only the
	// state directory was overridden.
	if *flags.contactsDSN == config.ContactsDSN && config.ContactsDSN == filepath.Join(config.StateDir, DefaultContactsFileName) && *flags.stateDir != config.StateDir {
		*flags.contactsDSN = filepath.Join(*flags.stateDir, DefaultContactsFileName)
		slog.Debug("Updated contacts DSN based on state directory", "path", *flags.contactsDSN)
	}

	return flags
}

// buildContactsRepository selects the contact store backend from the DSN.
func buildContactsRepository(dsn string) (contacts.Repository, error) {
	switch contacts.DetectDSNType(dsn) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring Postgres contacts store")
		return contacts.NewPostgresRepository(contacts.WithDSN(dsn))
	case "jsonfile":
		slog.Debug("Detected JSON file DSN, configuring file contacts store", "path", dsn)
		return contacts.NewJSONFileRepository(contacts.WithDSN(dsn))
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite contacts store", "path", dsn)
		return contacts.NewSQLiteRepository(contacts.WithDSN(dsn))
	}
}

// buildSender selects the SMS provider backend.
func buildSender(provider string) (messaging.Sender, error) {
	switch provider {
	case "twilio":
		return twiliosms.NewClient()
	default:
		return telnyx.NewClient()
	}
}

// run wires the modules together and serves until interrupted.
func run(flags Flags) error {
	repo, err := buildContactsRepository(*flags.contactsDSN)
	if err != nil {
		return err
	}
	defer repo.Close()

	sender, err := buildSender(*flags.provider)
	if err != nil {
		return err
	}
	svc := messaging.NewService(sender)

	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	gen, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	history := conversation.NewHistory()
	composer := flow.NewComposer(gen, history)
	dispatcher := messaging.NewDispatcher(svc, history, messaging.AttachmentPolicy(*flags.attachmentPolicy), *flags.mediaURL)
	engine := flow.NewEngine(svc, history, composer, dispatcher, repo)
	runner := followup.NewRunner(svc, repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(*flags.followupCron, func() {
		if _, err := runner.Run(ctx); err != nil {
			slog.Error("Scheduled follow-up run failed", "error", err)
		}
	}); err != nil {
		return err
	}
	slog.Info("Follow-up schedule registered", "cron", *flags.followupCron)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(engine, runner, apiOpts...)

	slog.Info("Bootstrapping outreach server", "provider", *flags.provider, "contacts_backend", contacts.DetectDSNType(*flags.contactsDSN))
	return server.Run(ctx)
}
