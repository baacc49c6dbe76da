package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath      string `long:"db-path" env:"DB_PATH" default:"data/cine.db" description:"SQLite database file"`
	SourcesFile string `long:"sources" env:"SOURCES_FILE" default:"sources.yml" description:"YAML file describing the listing pages"`
	ReportFile  string `long:"report-file" env:"REPORT_FILE" default:"data/cine.md" description:"Write each report to this file (empty to disable)"`

	// Server and scheduler
	Serve             bool   `long:"serve" env:"SERVE" description:"Run the scheduler and HTTP API instead of a single run"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://cine.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background workers for scrape runs"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"21600" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Scraping
	UserAgent     string `long:"user-agent" env:"USER_AGENT" default:"Cine Comb/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout  int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" description:"Page fetch timeout in seconds, overrides the sources file"`
	ReferenceDays int    `long:"reference-days" env:"REFERENCE_DAYS" default:"1" description:"Compare against the latest snapshot at least this many days old"`
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the page cache (optional)"`
	PageCacheTTL  int    `long:"page-cache-ttl" env:"PAGE_CACHE_TTL" default:"3600" description:"Page cache TTL in seconds"`

	// Notifiers
	NtfyURL      string   `long:"ntfy-url" env:"NTFY_URL" default:"https://ntfy.sh" description:"ntfy server URL"`
	NtfyTopic    string   `long:"ntfy-topic" env:"NTFY_TOPIC" description:"ntfy topic (empty to disable)"`
	GistID       string   `long:"gist-id" env:"GIST_ID" description:"GitHub gist updated with each report (optional)"`
	GitHubToken  string   `long:"github-token" env:"GITHUB_TOKEN" description:"GitHub token with gist scope"`
	GistFile     string   `long:"gist-file" env:"GIST_FILE" default:"cine.md" description:"File name inside the gist"`
	SMTPServer   string   `long:"smtp-server" env:"SMTP_SERVER" description:"SMTP server for email reports (optional)"`
	SMTPPort     int      `long:"smtp-port" env:"SMTP_PORT" default:"587" description:"SMTP port"`
	SMTPUser     string   `long:"smtp-user" env:"SMTP_USER" description:"SMTP username"`
	SMTPPassword string   `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
	SMTPFrom     string   `long:"smtp-from" env:"SMTP_FROM" description:"Sender address"`
	SMTPTo       []string `long:"smtp-to" env:"SMTP_TO" env-delim:"," description:"Recipient addresses"`
	AMQPURL      string   `long:"amqp-url" env:"AMQP_URL" description:"AMQP broker URL (optional)"`
	AMQPQueue    string   `long:"amqp-queue" env:"AMQP_QUEUE" default:"cine.reports" description:"Queue receiving report events"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"America/Bogota" description:"Timezone for snapshot dates (e.g., America/Bogota)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load reads .env (or ENV_FILE), then environment variables and command-line
// flags. It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	if err := loadEnvFile(cmp.Or(os.Getenv("ENV_FILE"), ".env")); err != nil {
		return nil, err
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SourcesFile:       raw.SourcesFile,
		ReportFile:        raw.ReportFile,
		Serve:             raw.Serve,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		FetchTimeout:      raw.FetchTimeout,
		ReferenceDays:     raw.ReferenceDays,
		RedisAddr:         raw.RedisAddr,
		PageCacheTTL:      raw.PageCacheTTL,
		NtfyURL:           raw.NtfyURL,
		NtfyTopic:         raw.NtfyTopic,
		GistID:            raw.GistID,
		GitHubToken:       raw.GitHubToken,
		GistFile:          raw.GistFile,
		SMTPServer:        raw.SMTPServer,
		SMTPPort:          raw.SMTPPort,
		SMTPUser:          raw.SMTPUser,
		SMTPPassword:      raw.SMTPPassword,
		SMTPFrom:          raw.SMTPFrom,
		SMTPTo:            raw.SMTPTo,
		AMQPURL:           raw.AMQPURL,
		AMQPQueue:         raw.AMQPQueue,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
		Location:          time.Local,
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if loc, err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	} else {
		cfg.Location = loc
	}

	if cfg.BaseUrl == "" {
		cfg.BaseUrl = "http://localhost:" + cfg.Port
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		slog.Debug("Environment file loaded", "path", path)
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func validate(cfg *Cfg) error {
	if cfg.ReferenceDays < 1 {
		return fmt.Errorf("reference-days must be at least 1, got %d", cfg.ReferenceDays)
	}
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("worker-count must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler-interval must be positive, got %d", cfg.SchedulerInterval)
	}
	if cfg.FetchTimeout < 0 || cfg.PageCacheTTL < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if cfg.GistID != "" && cfg.GitHubToken == "" {
		return fmt.Errorf("gist-id requires github-token")
	}
	if cfg.SMTPServer != "" && (cfg.SMTPFrom == "" || len(cfg.SMTPTo) == 0) {
		return fmt.Errorf("smtp-server requires smtp-from and smtp-to")
	}
	return nil
}

func applyTimezone(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	time.Local = loc
	slog.Debug("Timezone configured", "timezone", timezone)
	return loc, nil
}
