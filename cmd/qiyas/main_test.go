package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "config", "models", "version"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestConfigSchemaCommandPrintsSchema(t *testing.T) {
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "schema"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{`"vendors"`, `"session"`, `"stream"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("schema output missing %s", want)
		}
	}
}

func TestModelsCommandListsRoster(t *testing.T) {
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"models"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"gemini-2.5-pro", "claude-sonnet-4-5-20250929", "anthropic", "google"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("roster output missing %s", want)
		}
	}
}
