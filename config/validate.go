package config

import (
	"fmt"
	"net"
	"strings"
)

func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config must not be nil")
	}
	if _, _, err := net.SplitHostPort(c.RPCAddress); err != nil {
		return fmt.Errorf("rpc address %q: %w", c.RPCAddress, err)
	}
	if strings.TrimSpace(c.GenesisFile) == "" {
		return fmt.Errorf("genesis file must be configured")
	}
	if c.RPC.ReadHeaderTimeout < 0 || c.RPC.ReadTimeout < 0 || c.RPC.WriteTimeout < 0 || c.RPC.IdleTimeout < 0 {
		return fmt.Errorf("rpc: timeouts must not be negative")
	}
	if c.RPC.MaxBodyBytes <= 0 {
		return fmt.Errorf("rpc: MaxBodyBytes must be positive")
	}
	if c.RPC.RateLimitPerSec < 0 {
		return fmt.Errorf("rpc: RateLimitPerSec must not be negative")
	}
	if c.RPC.RateLimitPerSec > 0 && c.RPC.RateLimitBurst <= 0 {
		return fmt.Errorf("rpc: RateLimitBurst must be positive when rate limiting is enabled")
	}
	if c.RPC.JWT.Enable && strings.TrimSpace(c.RPC.JWT.SecretEnv) == "" {
		return fmt.Errorf("rpc: JWT.SecretEnv required when JWT is enabled")
	}
	if c.RPC.JWT.MaxSkewSeconds < 0 {
		return fmt.Errorf("rpc: JWT.MaxSkewSeconds must not be negative")
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging: rotation limits must not be negative")
	}
	if (c.Telemetry.Metrics || c.Telemetry.Traces) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: endpoint required when exporters are enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within (0, 1]")
	}
	return nil
}
