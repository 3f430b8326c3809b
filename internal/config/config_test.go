package config

import "testing"

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("expected default server port 8080, got %q", cfg.ServerPort)
	}
	if cfg.MigrationsPath != "migrations" {
		t.Errorf("expected default migrations path, got %q", cfg.MigrationsPath)
	}
	if cfg.GatewayFailurePercent != 25 {
		t.Errorf("expected default gateway failure percent 25, got %d", cfg.GatewayFailurePercent)
	}
	if cfg.TransactionCreateRateLimitPerMinute != 60 {
		t.Errorf("expected default create rate limit 60, got %d", cfg.TransactionCreateRateLimitPerMinute)
	}
	if cfg.RedisRateLimitPrefix != "ytlpay:rate_limit" {
		t.Errorf("expected default rate limit prefix, got %q", cfg.RedisRateLimitPrefix)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/wallet")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("CHECKSUM_KEY", "  padded-key  ")
	t.Setenv("GATEWAY_FAILURE_PERCENT", "40")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("expected server port 9090, got %q", cfg.ServerPort)
	}
	if cfg.DatabaseURL != "postgres://localhost:5432/wallet" {
		t.Errorf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Errorf("unexpected jwt secret %q", cfg.JWTSecret)
	}
	if cfg.ChecksumKey != "padded-key" {
		t.Errorf("expected checksum key to be trimmed, got %q", cfg.ChecksumKey)
	}
	if cfg.GatewayFailurePercent != 40 {
		t.Errorf("expected gateway failure percent 40, got %d", cfg.GatewayFailurePercent)
	}
}

func TestLoadConfig_PortEnvWinsOverServerPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PORT", "3000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerPort != "3000" {
		t.Errorf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_ClampsGatewayFailurePercent(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "negative coerced to zero", value: "-5", want: 0},
		{name: "above hundred capped", value: "250", want: 100},
		{name: "boundary kept", value: "100", want: 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GATEWAY_FAILURE_PERCENT", tc.value)
			cfg, err := LoadConfig(t.TempDir())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.GatewayFailurePercent != tc.want {
				t.Errorf("expected %d, got %d", tc.want, cfg.GatewayFailurePercent)
			}
		})
	}
}

func TestLoadConfig_NegativeRateLimitDisabled(t *testing.T) {
	t.Setenv("TRANSACTION_CREATE_RATE_LIMIT_PER_MINUTE", "-1")
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TransactionCreateRateLimitPerMinute != 0 {
		t.Errorf("expected negative limit coerced to zero, got %d", cfg.TransactionCreateRateLimitPerMinute)
	}
}
