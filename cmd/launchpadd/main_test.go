package main

import "testing"

func TestResolveGenesisPathPrecedence(t *testing.T) {
	env := map[string]string{}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}

	if got := resolveGenesisPath("", "genesis.json", lookup); got != "genesis.json" {
		t.Fatalf("expected config path, got %q", got)
	}
	env[genesisPathEnv] = " /etc/launchpad/genesis.json "
	if got := resolveGenesisPath("", "genesis.json", lookup); got != "/etc/launchpad/genesis.json" {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := resolveGenesisPath("./local.json", "genesis.json", lookup); got != "./local.json" {
		t.Fatalf("expected flag path, got %q", got)
	}
	env[genesisPathEnv] = "  "
	if got := resolveGenesisPath("", "genesis.json", lookup); got != "genesis.json" {
		t.Fatalf("blank env must fall back to config, got %q", got)
	}
}
