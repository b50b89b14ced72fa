// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsEmptyDefault(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "strata.toml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.Repos) != 0 {
		t.Errorf("expected no repositories in the default config, got %v", cfg.Repos)
	}
}

func TestLoadConfigParsesRepositoriesAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.toml")
	body := `
binary_only = true
race = true
impossible_check = false

[[repository]]
name = "local"
path = "/srv/strata/local"

[[repository]]
name = "upstream"
path = "/srv/strata/upstream"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.BinaryOnly || !cfg.Race || cfg.Impossible {
		t.Errorf("unexpected flags: %+v", cfg)
	}
	if len(cfg.Repos) != 2 {
		t.Fatalf("expected 2 repositories, got %d", len(cfg.Repos))
	}
	if cfg.Repos[0].Name() != "local" || cfg.Repos[1].Name() != "upstream" {
		t.Errorf("unexpected repository names: %s, %s", cfg.Repos[0].Name(), cfg.Repos[1].Name())
	}
}

func TestLoadConfigRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Errorf("expected an error parsing malformed TOML")
	}
}
