package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/sapadt/internal/pathutil"
)

func TestSaveLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	if s, err := Load(path); err != nil || s != nil {
		t.Fatalf("load missing: %v %v", s, err)
	}
	want := Saved{Host: "sap01", Port: 44300, HTTPS: true, Client: "100", User: "DEVELOPER", Password: "secret"}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm: %o", perm)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *got != want {
		t.Fatalf("round trip: %+v", *got)
	}
	removed, err := Remove(path)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	removed, err = Remove(path)
	if err != nil || removed {
		t.Fatalf("second remove: %v %v", removed, err)
	}
}

func TestLoadDefaultsPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(`{"host":"h","user":"u"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Port != 50000 {
		t.Fatalf("port: %d", s.Port)
	}
}

func TestDefaultPathFollowsConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(pathutil.ConfigDirEnv, dir)
	got, err := DefaultPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if got != filepath.Join(dir, FileName) {
		t.Fatalf("path: %s", got)
	}
}
