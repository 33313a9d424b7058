package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"armstack/internal/arm"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[analysis]
profile = "arm"
workers = 3
strict = true
max_functions = 100

[noreturn]
functions = ["panic", "Reset_Handler"]

[log]
level = "debug"
prefix = "fw"
`)
	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := Analysis{Profile: "arm", Workers: 3, Strict: true, MaxFunctions: 100}
	if c.Analysis != want {
		t.Errorf("Analysis = %+v, want %+v", c.Analysis, want)
	}
	if !reflect.DeepEqual(c.NoReturn.Functions, []string{"panic", "Reset_Handler"}) {
		t.Errorf("NoReturn = %v", c.NoReturn.Functions)
	}
	if c.Log.Level != "debug" || c.Log.Prefix != "fw" {
		t.Errorf("Log = %+v", c.Log)
	}
	if c.Path != filepath.Join(dir, FileName) {
		t.Errorf("Path = %q", c.Path)
	}
	p, err := c.ProfileValue()
	if err != nil || p != arm.ARM {
		t.Errorf("ProfileValue = %v, %v", p, err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[analysis]\nstrict = true\n")
	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if c.Analysis.Workers != d.Analysis.Workers || c.Analysis.Profile != "thumb" || c.Log.Level != "info" {
		t.Errorf("defaults lost: %+v", c)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		is   error
	}{
		{"syntax", "[analysis\n", nil},
		{"unknown key", "[analysis]\nthreads = 4\n", nil},
		{"bad level", "[log]\nlevel = \"loud\"\n", ErrUnknownLevel},
		{"bad profile", "[analysis]\nprofile = \"mips\"\n", ErrUnknownProfile},
		{"negative workers", "[analysis]\nworkers = -1\n", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tc.body)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Errorf("err = %v, want %v", err, tc.is)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[log]\nprefix = \"root\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if c.Log.Prefix != "root" {
		t.Errorf("Prefix = %q, want root", c.Log.Prefix)
	}
}

func TestFindAndLoadDefault(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if c.Path != "" || c.Log.Level != "info" {
		t.Errorf("expected defaults, got %+v", c)
	}
}
