// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io/ioutil"
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/strata-pm/strata"
	"github.com/strata-pm/strata/internal/repo"
)

// DefaultConfigName is the config file cmd/strata reads from the
// working directory when -config is not given.
const DefaultConfigName = "strata.toml"

// rawConfig is the TOML-decoded shape of a strata.toml file.
type rawConfig struct {
	Repository []rawRepository `toml:"repository"`
	BinaryOnly bool            `toml:"binary_only"`
	Race       bool            `toml:"race"`
	Impossible bool            `toml:"impossible_check"`
}

type rawRepository struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Config is a parsed strata.toml plus the repositories it names,
// opened and ready to hand to a Solver or vfs.Mount.
type Config struct {
	Repos      []strata.Repository
	BinaryOnly bool
	Race       bool
	Impossible bool
}

// loadConfig reads and parses path, returning an empty default Config
// if the file does not exist. Repositories are only configured through
// this file; an empty default Config lists none.
func loadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing %s as TOML", path)
	}

	cfg := &Config{
		BinaryOnly: raw.BinaryOnly,
		Race:       raw.Race,
		Impossible: raw.Impossible,
	}
	for _, r := range raw.Repository {
		cfg.Repos = append(cfg.Repos, repo.Open(r.Name, r.Path))
	}
	return cfg, nil
}
