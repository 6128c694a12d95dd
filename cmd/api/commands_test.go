package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kirillkom/claims-intake/internal/config"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); !strings.HasPrefix(got, "claims-intake ") {
		t.Fatalf("unexpected version output %q", got)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")
	t.Setenv("CLAIMS_API_TOKEN", "super-secret")
	t.Setenv("API_PORT", "8181")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	got := out.String()
	if strings.Contains(got, "super-secret") {
		t.Fatalf("token leaked in config output:\n%s", got)
	}
	if !strings.Contains(got, "8181") {
		t.Fatalf("expected api port in output:\n%s", got)
	}
}
