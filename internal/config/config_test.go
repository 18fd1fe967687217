package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name   string
		check  func(*Config) bool
		expect string
	}{
		{
			name:   "default topic is orders",
			check:  func(c *Config) bool { return c.Topic == "orders" },
			expect: "orders",
		},
		{
			name:   "default consumer group",
			check:  func(c *Config) bool { return c.ConsumerGroup == "order-processor-group" },
			expect: "order-processor-group",
		},
		{
			name:   "default consumer concurrency is 3",
			check:  func(c *Config) bool { return c.ConsumerConcurrency == 3 },
			expect: "3",
		},
		{
			name:   "default cache host is localhost",
			check:  func(c *Config) bool { return c.CacheHost == "localhost" },
			expect: "localhost",
		},
		{
			name:   "default cache port is 6379",
			check:  func(c *Config) bool { return c.CachePort == 6379 },
			expect: "6379",
		},
		{
			name:   "default product cache ttl is 3600s",
			check:  func(c *Config) bool { return c.CacheTTLProduct == 3600 && c.ProductTTL() == time.Hour },
			expect: "3600",
		},
		{
			name:   "default customer cache ttl is 1800s",
			check:  func(c *Config) bool { return c.CacheTTLCustomer == 1800 && c.CustomerTTL() == 30*time.Minute },
			expect: "1800",
		},
		{
			name:   "default max retries is 5",
			check:  func(c *Config) bool { return c.MaxRetries == 5 },
			expect: "5",
		},
		{
			name:   "default failure ttl is 24h",
			check:  func(c *Config) bool { return c.FailureTTLHours == 24*time.Hour },
			expect: "24h",
		},
		{
			name:   "default lock ttl is 30s",
			check:  func(c *Config) bool { return c.LockTTLSeconds == 30 && c.LockTTL() == 30*time.Second },
			expect: "30",
		},
		{
			name:   "default log level is info",
			check:  func(c *Config) bool { return c.LogLevel == "info" },
			expect: "info",
		},
		{
			name:   "default log format is json",
			check:  func(c *Config) bool { return c.LogFormat == "json" },
			expect: "json",
		},
		{
			name:   "redis url built from cache host/port",
			check:  func(c *Config) bool { return c.RedisURL() == "redis://localhost:6379/0" },
			expect: "redis://localhost:6379/0",
		},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("expected %s", tt.expect)
			}
		})
	}
}
