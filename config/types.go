package config

// RPC tunes the JSON-RPC HTTP server. Timeouts are in seconds.
type RPC struct {
	ReadHeaderTimeout int      `toml:"ReadHeaderTimeout"`
	ReadTimeout       int      `toml:"ReadTimeout"`
	WriteTimeout      int      `toml:"WriteTimeout"`
	IdleTimeout       int      `toml:"IdleTimeout"`
	MaxBodyBytes      int64    `toml:"MaxBodyBytes"`
	RateLimitPerSec   float64  `toml:"RateLimitPerSec"`
	RateLimitBurst    int      `toml:"RateLimitBurst"`
	AllowedOrigins    []string `toml:"AllowedOrigins,omitempty"`
	JWT            JWT      `toml:"JWT"`
}

// JWT gates lp_sendTransaction behind HS256 bearer tokens. The secret is read
// from the environment variable named by SecretEnv, never from the file.
type JWT struct {
	Enable         bool   `toml:"Enable"`
	SecretEnv      string `toml:"SecretEnv,omitempty"`
	Issuer         string `toml:"Issuer,omitempty"`
	Audience       string `toml:"Audience,omitempty"`
	MaxSkewSeconds int    `toml:"MaxSkewSeconds"`
}

// Logging controls the structured log sink.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers,omitempty"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`

	// SampleRatio is the share of root spans kept when tracing, in (0, 1].
	SampleRatio float64 `toml:"SampleRatio"`
}
