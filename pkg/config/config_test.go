package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	s.valid = true
	if s.Port == 0 {
		return errors.New("port required")
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("GEOPLAN_SET", "value")
	t.Setenv("GEOPLAN_EMPTY", "")
	tests := map[string]string{
		"${GEOPLAN_SET}":             "value",
		"$GEOPLAN_SET/x":             "value/x",
		"${GEOPLAN_UNSET_XYZ:-dflt}": "dflt",
		"${GEOPLAN_EMPTY:-dflt}":     "dflt",
		"${GEOPLAN_SET:-dflt}":       "value",
		"${GEOPLAN_UNSET_XYZ}":       "",
	}
	for in, want := range tests {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("GEOPLAN_PORT", "8181")
	path := writeConfig(t, "name: ${GEOPLAN_NAME:-geoplan}\nport: ${GEOPLAN_PORT}\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "geoplan" || s.Port != 8181 || !s.valid {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoadValidationError(t *testing.T) {
	path := writeConfig(t, "name: x\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	s := sample{Port: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if !s.valid {
		t.Error("defaults were not validated")
	}
}
