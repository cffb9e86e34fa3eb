package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	m, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := m.Get("memory"); got.Kind != KindInt || got.Int != 1024 {
		t.Errorf("memory default = %+v, want Int(1024)", got)
	}
	if got := m.Get("java_executable"); got.Kind != KindString || got.String != "java" {
		t.Errorf("java_executable default = %+v, want Str(\"java\")", got)
	}
	if got := m.Get("developer_mode"); got.Kind != KindBool || got.Bool != false {
		t.Errorf("developer_mode default = %+v, want Bool(false)", got)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	m, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	m.Set("memory", Int(4096))
	m.Set("extra_mods", StrList([]string{"sodium", "lithium"}))
	m.Set("custom_flag", Bool(true))
	m.Set("nickname", Str("proton"))

	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if got := reloaded.Get("memory"); got.Kind != KindInt || got.Int != 4096 {
		t.Errorf("memory = %+v, want Int(4096)", got)
	}
	if got := reloaded.Get("extra_mods"); got.Kind != KindStringList || !reflect.DeepEqual(got.List, []string{"sodium", "lithium"}) {
		t.Errorf("extra_mods = %+v", got)
	}
	if got := reloaded.Get("custom_flag"); got.Kind != KindBool || !got.Bool {
		t.Errorf("custom_flag = %+v", got)
	}
}

func TestLoad_UnknownKeyRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()

	m, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	m.Set("totally_unknown_key", Str("kept"))
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.Get("totally_unknown_key"); got.Kind != KindString || got.String != "kept" {
		t.Errorf("unknown key didn't round-trip: %+v", got)
	}
}

func TestSave_WritesAtomically(t *testing.T) {
	tmpDir := t.TempDir()
	m, _ := Load(tmpDir)
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := Load(tmpDir); err != nil {
		t.Fatalf("reload after save failed: %v", err)
	}
	path := filepath.Join(tmpDir, settingsFileName)
	if _, err := filepath.Abs(path); err != nil {
		t.Fatalf("bad path: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file missing after save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind after save: %v", err)
	}
}
