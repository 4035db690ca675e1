package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test", "abc123")
	cmd.Writer = &out
	cmd.ErrWriter = &out
	cmd.Reader = strings.NewReader(stdin)
	err := cmd.Run(context.Background(), append([]string{"claudebridge"}, args...))
	return out.String(), err
}

func useFileStorage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api_key")
	t.Setenv("CLAUDEBRIDGE_AUTH__STORAGE", "file")
	t.Setenv("CLAUDEBRIDGE_AUTH__FILE", path)
	return path
}

func TestAuthKeyLifecycle(t *testing.T) {
	path := useFileStorage(t)

	out, err := run(t, "", "auth", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No API key found") {
		t.Errorf("status before set = %q", out)
	}

	if _, err := run(t, "sk-proj-1234567890\n", "auth", "set-key"); err != nil {
		t.Fatalf("set-key: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) != "sk-proj-1234567890" {
		t.Fatalf("key file = %q, %v", data, err)
	}

	out, err = run(t, "", "auth", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Contains(out, "sk-proj-1234567890") || !strings.Contains(out, "7890") {
		t.Errorf("status should show a masked key: %q", out)
	}

	if _, err := run(t, "", "auth", "clear-key"); err != nil {
		t.Fatalf("clear-key: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("key file still present: %v", err)
	}
}

func TestAuthSetKeyRejectsEmpty(t *testing.T) {
	useFileStorage(t)

	if _, err := run(t, "\n", "auth", "set-key"); err == nil {
		t.Fatal("want error for empty key")
	}
}

func TestAuthRejectsEnvStorage(t *testing.T) {
	t.Setenv("CLAUDEBRIDGE_AUTH__STORAGE", "env")

	for _, sub := range []string{"set-key", "clear-key"} {
		_, err := run(t, "sk-x\n", "auth", sub)
		if err == nil || !strings.Contains(err.Error(), "read-only") {
			t.Errorf("%s: err = %v, want read-only error", sub, err)
		}
	}
}

func TestConfigShow(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "client-secret")
	t.Setenv("BIG_MODEL", "gpt-4.1")

	out, err := run(t, "", "--log-level", "debug", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "client-secret") {
		t.Errorf("secret leaked:\n%s", out)
	}
	for _, want := range []string{"gpt-4.1", "debug"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "bridge.env")
	if err := os.WriteFile(envFile, []byte("SMALL_MODEL=gpt-4.1-nano\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets process variables; register cleanup before it runs.
	t.Setenv("SMALL_MODEL", "")
	os.Unsetenv("SMALL_MODEL")

	out, err := run(t, "", "--env", envFile, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "gpt-4.1-nano") {
		t.Errorf("env file not applied:\n%s", out)
	}
}

func TestMissingEnvFile(t *testing.T) {
	if _, err := run(t, "", "--env", filepath.Join(t.TempDir(), "missing.env"), "config", "show"); err == nil {
		t.Fatal("want error for missing env file")
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"short":              "*****",
		"sk-proj-1234567890": "sk-***********7890",
	}
	for in, want := range tests {
		if got := maskKey(in); got != want {
			t.Errorf("maskKey(%q) = %q, want %q", in, got, want)
		}
	}
}
