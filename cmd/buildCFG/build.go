package buildCFG

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"

	"gatherly/internal/api"
)

type PaymentConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	CallbackAddr string
}

func BuildAPIConfig(cfg *config.Config, log *zerolog.Logger) (api.Config, error) {
	baseURL := cfg.GetString("backend.base_url")
	if baseURL == "" {
		return api.Config{}, fmt.Errorf("backend.base_url is required")
	}

	timeout := 10 * time.Second
	if raw := cfg.GetString("backend.timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return api.Config{}, fmt.Errorf("invalid backend.timeout: %w", err)
		}
		timeout = parsed
	}

	log.Info().Str("base_url", baseURL).Msg("backend configured")
	return api.Config{BaseURL: baseURL, Timeout: timeout}, nil
}

func BuildStorePath(cfg *config.Config, log *zerolog.Logger) (string, error) {
	path := cfg.GetString("store.path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".gatherly", "state.json")
	}
	log.Info().Str("path", path).Msg("state store configured")
	return path, nil
}

func BuildPaymentConfig(cfg *config.Config, log *zerolog.Logger) (PaymentConfig, error) {
	pc := PaymentConfig{
		PollInterval: 3 * time.Second,
		MaxWait:      10 * time.Minute,
		CallbackAddr: ":8721",
	}

	if raw := cfg.GetString("payment.poll_interval"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return pc, fmt.Errorf("invalid payment.poll_interval: %w", err)
		}
		pc.PollInterval = parsed
	}
	if raw := cfg.GetString("payment.max_wait"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return pc, fmt.Errorf("invalid payment.max_wait: %w", err)
		}
		pc.MaxWait = parsed
	}
	if addr := cfg.GetString("payment.callback_addr"); addr != "" {
		pc.CallbackAddr = addr
	}

	log.Info().
		Dur("poll_interval", pc.PollInterval).
		Dur("max_wait", pc.MaxWait).
		Str("callback_addr", pc.CallbackAddr).
		Msg("payment watcher configured")
	return pc, nil
}
