// JournalPipe is a daily journaling bot: once per day it greets each member
// of the configured journaling channel, asks the questions due today, and
// files the answers as one dated entry per member.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/journalpipe/journalpipe/internal/archive"
	"github.com/journalpipe/journalpipe/internal/catalog"
	"github.com/journalpipe/journalpipe/internal/collector"
	"github.com/journalpipe/journalpipe/internal/recurrence"
	"github.com/journalpipe/journalpipe/internal/scheduler"
	"github.com/journalpipe/journalpipe/internal/session"
	"github.com/journalpipe/journalpipe/internal/store"
	"github.com/journalpipe/journalpipe/internal/util"
	"github.com/journalpipe/journalpipe/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for JournalPipe state data
	DefaultStateDir = "/var/lib/journalpipe"
	// DefaultSessionDBFileName is the default whatsmeow session database filename
	DefaultSessionDBFileName = "whatsmeow.db"
	// DefaultCatalogFileName is the default question catalog filename
	DefaultCatalogFileName = "questions.json"
	// DefaultRecurrenceFileName is the default recurrence state filename
	DefaultRecurrenceFileName = "question_timestamps.json"
	// DefaultEntriesDirName is the default directory name for entry documents
	DefaultEntriesDirName = "journal_entries"
	// DefaultDailyCron fires the daily run at 09:00 in the configured time zone
	DefaultDailyCron = "0 9 * * *"
	// DefaultTimezone is the zone the daily trigger and entry dates use
	DefaultTimezone = "UTC"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("JournalPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("JournalPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	SessionDBDSN  string
	EntriesDSN    string
	CatalogPath   string
	ChannelName   string
	DailyCron     string
	Timezone      string
	ReplyTimeout  time.Duration
	ArchiveURL    string
	ArchiveToken  string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput     *string
	numeric      *bool
	stateDir     *string
	sessionDSN   *string
	entriesDSN   *string
	catalogPath  *string
	channelName  *string
	dailyCron    *string
	timezone     *string
	replyTimeout *time.Duration
	archiveURL   *string
	once         *bool
}

// initializeLogger sets up structured logging with the configured level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("JOURNALPIPE_DEBUG", false) {
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
		StateDir:     util.GetenvDefault("JOURNALPIPE_STATE_DIR", DefaultStateDir),
		SessionDBDSN: os.Getenv("WHATSAPP_DB_DSN"),
		EntriesDSN:   util.GetenvDefault("JOURNALPIPE_DB_DSN", os.Getenv("DATABASE_URL")),
		CatalogPath:  os.Getenv("JOURNALPIPE_QUESTIONS"),
		ChannelName:  util.GetenvDefault("JOURNALPIPE_CHANNEL", session.DefaultChannelName),
		DailyCron:    util.GetenvDefault("JOURNALPIPE_DAILY_CRON", DefaultDailyCron),
		Timezone:     util.GetenvDefault("JOURNALPIPE_TIMEZONE", DefaultTimezone),
		ReplyTimeout: util.ParseDurationEnv("JOURNALPIPE_REPLY_TIMEOUT", collector.DefaultTimeout),
		ArchiveURL:   os.Getenv("JOURNALPIPE_ARCHIVE_URL"),
		ArchiveToken: os.Getenv("JOURNALPIPE_ARCHIVE_TOKEN"),
	}

	if config.SessionDBDSN == "" {
		config.SessionDBDSN = "file:" + filepath.Join(config.StateDir, DefaultSessionDBFileName) + "?_foreign_keys=on"
		slog.Debug("No session database DSN provided, defaulting to SQLite", "sqlite_path", config.SessionDBDSN)
	}
	if config.CatalogPath == "" {
		config.CatalogPath = filepath.Join(config.StateDir, DefaultCatalogFileName)
	}

	slog.Debug("environment variables loaded",
		"JOURNALPIPE_STATE_DIR", config.StateDir,
		"WHATSAPP_DB_DSN_SET", config.SessionDBDSN != "",
		"JOURNALPIPE_DB_DSN_SET", config.EntriesDSN != "",
		"JOURNALPIPE_QUESTIONS", config.CatalogPath,
		"JOURNALPIPE_CHANNEL", config.ChannelName,
		"JOURNALPIPE_DAILY_CRON", config.DailyCron,
		"JOURNALPIPE_TIMEZONE", config.Timezone,
		"JOURNALPIPE_ARCHIVE_URL_SET", config.ArchiveURL != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:     flag.String("qr-output", "", "path to write login QR code"),
		numeric:      flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for JournalPipe data (overrides $JOURNALPIPE_STATE_DIR)"),
		sessionDSN:   flag.String("session-db-dsn", config.SessionDBDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)"),
		entriesDSN:   flag.String("db-dsn", config.EntriesDSN, "entry store DSN; empty uses per-day JSON files (overrides $JOURNALPIPE_DB_DSN or $DATABASE_URL)"),
		catalogPath:  flag.String("questions", config.CatalogPath, "question catalog path, JSON or YAML (overrides $JOURNALPIPE_QUESTIONS)"),
		channelName:  flag.String("channel", config.ChannelName, "journaling channel name resolved in each guild (overrides $JOURNALPIPE_CHANNEL)"),
		dailyCron:    flag.String("daily-cron", config.DailyCron, "cron expression for the daily run (overrides $JOURNALPIPE_DAILY_CRON)"),
		timezone:     flag.String("timezone", config.Timezone, "IANA time zone for the daily trigger and entry dates (overrides $JOURNALPIPE_TIMEZONE)"),
		replyTimeout: flag.Duration("reply-timeout", config.ReplyTimeout, "wait window for replies and reactions (overrides $JOURNALPIPE_REPLY_TIMEOUT)"),
		archiveURL:   flag.String("archive-url", config.ArchiveURL, "remote archive base URL; empty disables archiving (overrides $JOURNALPIPE_ARCHIVE_URL)"),
		once:         flag.Bool("once", false, "run a single journaling pass immediately and exit"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"entriesDSN_set", *flags.entriesDSN != "",
		"catalogPath", *flags.catalogPath,
		"channelName", *flags.channelName,
		"dailyCron", *flags.dailyCron,
		"timezone", *flags.timezone,
		"replyTimeout", *flags.replyTimeout,
		"once", *flags.once)

	return flags
}

// buildEntryStore picks the entry storage backend from the DSN.
func buildEntryStore(dsn, stateDir string) (store.Store, error) {
	if dsn == "" {
		return store.NewFileStore(filepath.Join(stateDir, DefaultEntriesDirName))
	}
	switch store.DetectDSNType(dsn) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL entry store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	case "sqlite":
		slog.Debug("Detected SQLite DSN, configuring SQLite entry store")
		return store.NewSQLiteStore(store.WithDSN(dsn))
	default:
		slog.Debug("Treating DSN as a directory, configuring JSON file entry store", "dir", dsn)
		return store.NewFileStore(dsn)
	}
}

// buildArchiver configures the remote archiver, or a no-op when unset.
func buildArchiver(url, token string) archive.Archiver {
	if url == "" {
		slog.Debug("No archive URL configured, archiving disabled")
		return archive.NopArchiver{}
	}
	return archive.NewHTTPArchiver(url, archive.WithToken(token))
}

func run(flags Flags) error {
	loc, err := time.LoadLocation(*flags.timezone)
	if err != nil {
		slog.Error("Invalid time zone", "error", err, "timezone", *flags.timezone)
		return err
	}

	questions, err := catalog.Load(*flags.catalogPath)
	if err != nil {
		return err
	}

	tracker := recurrence.NewTracker(filepath.Join(*flags.stateDir, DefaultRecurrenceFileName))

	entries, err := buildEntryStore(*flags.entriesDSN, *flags.stateDir)
	if err != nil {
		return err
	}
	defer entries.Close()

	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.sessionDSN))

	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := whatsapp.NewGateway(client)
	if err := gw.Start(ctx); err != nil {
		return err
	}

	col := collector.New(gw, tracker, collector.WithTimeout(*flags.replyTimeout))
	orch := session.New(gw, questions, tracker, col, entries, buildArchiver(*flags.archiveURL, os.Getenv("JOURNALPIPE_ARCHIVE_TOKEN")),
		session.WithChannelName(*flags.channelName),
		session.WithLocation(loc),
	)

	if *flags.once {
		slog.Info("Running single journaling pass")
		return orch.Run(ctx)
	}

	sched := scheduler.NewScheduler(loc)
	defer sched.Stop()
	if err := sched.AddJob(*flags.dailyCron, func() {
		if err := orch.Run(ctx); err != nil {
			slog.Error("Daily journaling run failed", "error", err)
		}
	}); err != nil {
		slog.Error("Invalid daily cron expression", "error", err, "cron", *flags.dailyCron)
		return err
	}
	slog.Info("Daily journaling trigger scheduled", "cron", *flags.dailyCron, "timezone", *flags.timezone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Shutting down on signal", "signal", sig.String())
	cancel()
	return nil
}
