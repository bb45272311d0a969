package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestLoad_AppliesDefaultsWhenUnset(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := Load()
	if cfg.StoreDriver != "sqlite" {
		t.Errorf("expected default store-driver sqlite, got %q", cfg.StoreDriver)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("expected default worker-count 8, got %d", cfg.WorkerCount)
	}
	if cfg.DistributorPollInterval != 100*time.Millisecond {
		t.Errorf("expected default distributor-poll-interval 100ms, got %s", cfg.DistributorPollInterval)
	}
	if cfg.TracingEnabled {
		t.Error("expected tracing-enabled to default to false")
	}
}

func TestLoad_FlagOverridesDefault(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse([]string{"--worker-count", "16", "--store-driver", "memory"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := Load()
	if cfg.WorkerCount != 16 {
		t.Errorf("expected flag-overridden worker-count 16, got %d", cfg.WorkerCount)
	}
	if cfg.StoreDriver != "memory" {
		t.Errorf("expected flag-overridden store-driver memory, got %q", cfg.StoreDriver)
	}
}

func TestLoad_EnvVarOverridesDefault(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}

	t.Setenv("SP_STORE_DSN", "postgres://example/test")
	t.Setenv("SP_HTTP_RATE_LIMIT", "123.5")

	cfg := Load()
	if cfg.StoreDSN != "postgres://example/test" {
		t.Errorf("expected SP_STORE_DSN to override store-dsn, got %q", cfg.StoreDSN)
	}
	if cfg.HTTPRateLimitPerSec != 123.5 {
		t.Errorf("expected SP_HTTP_RATE_LIMIT to override http-rate-limit, got %v", cfg.HTTPRateLimitPerSec)
	}
}
