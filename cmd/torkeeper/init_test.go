package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/torkeeper/internal/config"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()
	if cmd.Use != "init" {
		t.Errorf("expected use 'init', got %q", cmd.Use)
	}
	if flag := cmd.Flags().Lookup("output"); flag == nil || flag.Shorthand != "o" {
		t.Error("expected output flag with shorthand 'o'")
	}
	if flag := cmd.Flags().Lookup("force"); flag == nil || flag.Shorthand != "f" || flag.DefValue != "false" {
		t.Error("expected force flag with shorthand 'f'")
	}
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "nested", "torkeeper.yaml")
		out, err := executeRoot(t, "init", "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, outputPath) {
			t.Errorf("output should name the file, got %q", out)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read config file: %v", err)
		}
		if !strings.Contains(string(content), "embeddedPort") {
			t.Error("expected template content")
		}
	})

	t.Run("template loads as an empty config", func(t *testing.T) {
		t.Parallel()

		content, err := configTemplate.ReadFile("templates/torkeeper.yaml")
		if err != nil {
			t.Fatalf("failed to read template: %v", err)
		}
		var f config.File
		if err := yaml.Unmarshal(content, &f); err != nil {
			t.Fatalf("template is not valid YAML: %v", err)
		}
		cfg := config.NewConfig()
		f.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			t.Errorf("template changes defaults into an invalid config: %v", err)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		t.Parallel()

		outputPath := writeFile(t, t.TempDir(), "torkeeper.yaml", "existing: true\n")
		if _, err := executeRoot(t, "init", "-o", outputPath); err == nil {
			t.Fatal("expected error for existing file")
		}

		if _, err := executeRoot(t, "init", "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error with -f: %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read config file: %v", err)
		}
		if strings.Contains(string(content), "existing: true") {
			t.Error("expected file to be overwritten")
		}
	})
}
