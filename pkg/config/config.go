// Package config loads the engine's runtime configuration from flags and
// SP_-prefixed environment variables, grounded on
// 88lin-divinesense/cmd/divinesense/main.go's viper.BindPFlag +
// SetEnvKeyReplacer idiom.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration for every subsystem:
// store backend, distributor/worker pool tuning, and scheduler intervals.
type Config struct {
	LogMode string // "production" or "development"

	StoreDriver string // "sqlite" | "mysql" | "postgres" | "memory"
	StoreDSN    string

	ListenAddr string

	DistributorPollInterval time.Duration
	DistributorBufferSize   int
	WorkerCount             int
	JobStaleTimeout         time.Duration

	// DelayCheckInterval drives the periodic stale-job reclaim sweep (the
	// Delay Scheduler itself is purely event-driven: one goroutine per
	// armed delay plus a one-shot restore on startup, so it needs no tick
	// of its own).
	DelayCheckInterval    time.Duration
	HTTPLoopTickInterval  time.Duration
	HilTimeoutInterval    time.Duration
	CleanupInterval       time.Duration
	ExecutionRetentionHrs int

	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	HTTPRateLimitPerSec  float64
	EmailRateLimitPerSec float64
	LLMRateLimitPerSec   float64

	TracingEnabled bool
}

// BindFlags registers every configuration flag on fs and binds it into
// viper, so CLI flags, SP_-prefixed env vars, and defaults all resolve
// through the same viper.Get call.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("log-mode", "development", `logging mode, "production" or "development"`)
	fs.String("store-driver", "sqlite", `store backend: "sqlite", "mysql", "postgres", or "memory"`)
	fs.String("store-dsn", "swisspipe.db", "data source name for the selected store driver")
	fs.String("listen-addr", ":8080", "address the ingress HTTP server listens on")

	fs.Duration("distributor-poll-interval", 100*time.Millisecond, "distributor claim tick interval")
	fs.Int("distributor-buffer-size", 100, "buffered channel size between distributor and worker pool")
	fs.Int("worker-count", 8, "number of worker goroutines draining the distributor channel")
	fs.Duration("job-stale-timeout", 300*time.Second, "claimed job age before cleanup reclaims it")

	fs.Duration("delay-check-interval", 5*time.Second, "periodic stale-job reclaim sweep interval")
	fs.Duration("http-loop-tick-interval", time.Second, "HTTP loop scheduler poll interval")
	fs.Duration("hil-timeout-interval", 30*time.Second, "HIL timeout processor sweep interval")
	fs.Duration("cleanup-interval", time.Minute, "execution retention cleanup sweep interval")
	fs.Int("execution-retention-hours", 1, "hours to retain completed executions before deletion")

	fs.String("anthropic-api-key", "", "Anthropic API key")
	fs.String("openai-api-key", "", "OpenAI API key")
	fs.String("google-api-key", "", "Google Generative AI API key")

	fs.String("smtp-host", "", "SMTP server host")
	fs.Int("smtp-port", 587, "SMTP server port")
	fs.String("smtp-user", "", "SMTP auth username")
	fs.String("smtp-pass", "", "SMTP auth password")
	fs.String("smtp-from", "", "From address for outgoing email")

	fs.Float64("http-rate-limit", 50, "HTTP collaborator requests per second")
	fs.Float64("email-rate-limit", 5, "email collaborator sends per second")
	fs.Float64("llm-rate-limit", 10, "LLM collaborator requests per second")

	fs.Bool("tracing-enabled", false, "emit OpenTelemetry spans alongside structured logs")

	_ = viper.BindPFlags(fs)
}

// Load resolves bound flags, SP_-prefixed environment variables, and
// defaults into a Config.
func Load() *Config {
	viper.SetEnvPrefix("sp")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	return &Config{
		LogMode:     viper.GetString("log-mode"),
		StoreDriver: viper.GetString("store-driver"),
		StoreDSN:    viper.GetString("store-dsn"),
		ListenAddr:  viper.GetString("listen-addr"),

		DistributorPollInterval: viper.GetDuration("distributor-poll-interval"),
		DistributorBufferSize:   viper.GetInt("distributor-buffer-size"),
		WorkerCount:             viper.GetInt("worker-count"),
		JobStaleTimeout:         viper.GetDuration("job-stale-timeout"),

		DelayCheckInterval:    viper.GetDuration("delay-check-interval"),
		HTTPLoopTickInterval:  viper.GetDuration("http-loop-tick-interval"),
		HilTimeoutInterval:    viper.GetDuration("hil-timeout-interval"),
		CleanupInterval:       viper.GetDuration("cleanup-interval"),
		ExecutionRetentionHrs: viper.GetInt("execution-retention-hours"),

		AnthropicAPIKey: viper.GetString("anthropic-api-key"),
		OpenAIAPIKey:    viper.GetString("openai-api-key"),
		GoogleAPIKey:    viper.GetString("google-api-key"),

		SMTPHost: viper.GetString("smtp-host"),
		SMTPPort: viper.GetInt("smtp-port"),
		SMTPUser: viper.GetString("smtp-user"),
		SMTPPass: viper.GetString("smtp-pass"),
		SMTPFrom: viper.GetString("smtp-from"),

		HTTPRateLimitPerSec:  viper.GetFloat64("http-rate-limit"),
		EmailRateLimitPerSec: viper.GetFloat64("email-rate-limit"),
		LLMRateLimitPerSec:   viper.GetFloat64("llm-rate-limit"),

		TracingEnabled: viper.GetBool("tracing-enabled"),
	}
}
