package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath      string
	SourcesFile string
	ReportFile  string

	// Server and scheduler
	Serve             bool
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Scraping
	UserAgent     string
	FetchTimeout  int
	ReferenceDays int
	RedisAddr     string
	PageCacheTTL  int

	// Notifiers
	NtfyURL      string
	NtfyTopic    string
	GistID       string
	GitHubToken  string
	GistFile     string
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPTo       []string
	AMQPURL      string
	AMQPQueue    string

	// Application metadata
	Timezone string
	Location *time.Location
	Debug    bool
	Version  string
}
