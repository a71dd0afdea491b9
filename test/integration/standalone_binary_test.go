package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	goModPathBytes, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		t.Fatalf("go env GOMOD: %v", err)
	}
	goModPath := strings.TrimSpace(string(goModPathBytes))
	if goModPath == "" {
		t.Fatalf("go env GOMOD returned empty")
	}

	binaryPath := filepath.Join(t.TempDir(), "docgate")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd/docgate")
	build.Dir = filepath.Dir(goModPath)
	build.Env = os.Environ()
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, string(out))
	}
	return binaryPath
}

// isolatedEnv keeps the binary away from the developer's config and ledger.
func isolatedEnv(t *testing.T) []string {
	t.Helper()
	home := t.TempDir()
	return append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"XDG_DATA_HOME="+filepath.Join(home, ".local", "share"),
	)
}

func TestStandaloneBinaryVersionAndHelpWorkOutsideRepo(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}
	binary := buildBinary(t)
	outside := t.TempDir()
	env := isolatedEnv(t)

	for _, args := range [][]string{{"version"}, {"--help"}, {"submit", "--help"}} {
		c := exec.Command(binary, args...)
		c.Dir = outside
		c.Env = env
		if out, err := c.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %v\n%s", args, err, string(out))
		}
	}
}

func TestStandaloneBinaryDryRunSubmit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary exec test is unix-focused")
	}
	binary := buildBinary(t)
	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.json")
	if err := os.WriteFile(doc, []byte(`{"doc_id":"standalone-1"}`), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}

	c := exec.Command(binary, "submit", "--dry-run", doc)
	c.Dir = dir
	c.Env = isolatedEnv(t)
	out, err := c.CombinedOutput()
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, string(out))
	}
	if !strings.Contains(string(out), `"doc_id": "standalone-1"`) {
		t.Fatalf("dry run output missing document:\n%s", string(out))
	}
	if !strings.Contains(string(out), "LP_INTRODUCE_GOODS") {
		t.Fatalf("dry run output missing default doc type:\n%s", string(out))
	}
}
