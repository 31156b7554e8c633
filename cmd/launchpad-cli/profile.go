package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultRPCURL        = "http://127.0.0.1:8545"
	defaultPassphraseEnv = "LAUNCHPAD_KEYSTORE_PASS"
)

// Profile holds the per-operator CLI settings.
type Profile struct {
	RPCURL        string `yaml:"rpcUrl"`
	Keystore      string `yaml:"keystore"`
	PassphraseEnv string `yaml:"passphraseEnv"`
	JWTSecretEnv  string `yaml:"jwtSecretEnv,omitempty"`
	JWTIssuer     string `yaml:"jwtIssuer,omitempty"`
	JWTAudience   string `yaml:"jwtAudience,omitempty"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "launchpad-profile.yaml"
	}
	return filepath.Join(home, ".launchpad", "profile.yaml")
}

func defaultProfile(path string) *Profile {
	return &Profile{
		RPCURL:        defaultRPCURL,
		Keystore:      filepath.Join(filepath.Dir(path), "keystore.json"),
		PassphraseEnv: defaultPassphraseEnv,
		JWTIssuer:     "launchpad-cli",
	}
}

// LoadProfile reads the YAML profile at path. A missing file yields the
// defaults; unknown keys are rejected.
func LoadProfile(path string) (*Profile, error) {
	profile := defaultProfile(path)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(profile); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if strings.TrimSpace(profile.RPCURL) == "" {
		return nil, fmt.Errorf("profile %s: rpcUrl must not be empty", path)
	}
	return profile, nil
}

// SaveProfile writes profile to path, creating the directory if needed.
func SaveProfile(path string, profile *Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	encoded, err := yaml.Marshal(profile)
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o600)
}
