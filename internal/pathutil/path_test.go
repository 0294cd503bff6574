package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandUserAndEnv(t *testing.T) {
	t.Setenv("SAPADT_TEST_DIR", "/opt/sap")
	got, err := ExpandUserAndEnv("$SAPADT_TEST_DIR/session.json")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != "/opt/sap/session.json" {
		t.Fatalf("unexpected expansion %q", got)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err = ExpandUserAndEnv("~/x")
	if err != nil {
		t.Fatalf("expand home: %v", err)
	}
	if got != filepath.Join(home, "x") {
		t.Fatalf("home expansion %q", got)
	}
}

func TestConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)
	got, err := ConfigFile("credentials.json")
	if err != nil {
		t.Fatalf("config file: %v", err)
	}
	if got != filepath.Join(dir, "credentials.json") {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode %v", info.Mode().Perm())
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary file left behind: %v", entries)
	}
}
