package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("QUEUE_DRIVER", "")
	t.Setenv("DISPATCH_MODE", "")
	t.Setenv("DISPATCH_MAX_WAIT_SECONDS", "")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8000")
	}
	if cfg.QueueDriver != "amqp" {
		t.Fatalf("QueueDriver mismatch: got %q", cfg.QueueDriver)
	}
	if cfg.DispatchMode != "poll" {
		t.Fatalf("DispatchMode mismatch: got %q", cfg.DispatchMode)
	}
	if cfg.DispatchMaxWait != 600*time.Second {
		t.Fatalf("DispatchMaxWait mismatch: got %v", cfg.DispatchMaxWait)
	}
	if cfg.DispatchPollInterval != time.Second {
		t.Fatalf("DispatchPollInterval mismatch: got %v", cfg.DispatchPollInterval)
	}
	if cfg.ImageRequestQueue != "image_generation_requests" {
		t.Fatalf("ImageRequestQueue mismatch: got %q", cfg.ImageRequestQueue)
	}
}

func TestLoadConfigWriteTimeoutOutlivesWaitBudget(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("DISPATCH_MAX_WAIT_SECONDS", "120")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTPWriteTimeout <= cfg.DispatchMaxWait {
		t.Fatalf("write timeout %v does not outlive wait budget %v", cfg.HTTPWriteTimeout, cfg.DispatchMaxWait)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("QUEUE_DRIVER", "kafka")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unsupported queue driver")
	}
}

func TestLoadConfigRejectsUnknownDispatchMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("QUEUE_DRIVER", "amqp")
	t.Setenv("DISPATCH_MODE", "fanout")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unsupported dispatch mode")
	}
}
