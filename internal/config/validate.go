package config

import "errors"

func ValidateForRun(cfg *Config) error {
	if cfg.Push == nil || cfg.Push.GatewayURL == "" {
		return errors.New("PUSH_GATEWAY_URL environment variable is required")
	}
	return cfg.Redis.Validate()
}
