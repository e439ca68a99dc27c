package kinds_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mentionflow/harness/internal/kinds"
)

func TestLoad_MissingFileReturnsEmptyCatalog(t *testing.T) {
	cat, err := kinds.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cat.Label("mention"); got != "mention" {
		t.Errorf("Label(%q) = %q, want %q (fallback to kind itself)", "mention", got, "mention")
	}

	if got := cat.Priority("mention"); got != 0 {
		t.Errorf("Priority(%q) = %d, want 0", "mention", got)
	}
}

func TestLoad_ValidCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinds.yaml")

	content := `
kinds:
  - name: mention
    label: "Direct mention"
    priority: 10
  - name: reply
    label: "Thread reply"
    priority: 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cat, err := kinds.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cat.Label("mention"); got != "Direct mention" {
		t.Errorf("Label(mention) = %q, want %q", got, "Direct mention")
	}

	if got := cat.Priority("reply"); got != 5 {
		t.Errorf("Priority(reply) = %d, want 5", got)
	}

	if got := cat.Label("unknown"); got != "unknown" {
		t.Errorf("Label(unknown) = %q, want fallback %q", got, "unknown")
	}
}

func TestLoad_InvalidYAMLDegradesGracefully(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinds.yaml")

	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cat, err := kinds.Load(path)
	if err != nil {
		t.Fatalf("expected graceful degradation, got error: %v", err)
	}

	if got := cat.Label("mention"); got != "mention" {
		t.Errorf("Label(mention) = %q, want fallback %q", got, "mention")
	}
}
