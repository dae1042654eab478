// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
)

// 📦 DeployrcConfig is the workspace configuration
type DeployrcConfig struct {
	Ignore   []string        `json:"ignore,omitempty" yaml:"ignore,omitempty" toml:"ignore" hcl:"ignore,optional"`
	Targets  []TargetConfig  `json:"targets" yaml:"targets" toml:"targets" hcl:"target,block"`
	Packages []PackageConfig `json:"packages,omitempty" yaml:"packages,omitempty" toml:"packages" hcl:"package,block"`

	location string
	once     sync.Once
	targets  []*target.Target
}

// 🎯 TargetConfig describes one deploy target
type TargetConfig struct {
	Name        string `json:"name" yaml:"name" toml:"name" hcl:"name,label"`
	Type        string `json:"type" yaml:"type" toml:"type" hcl:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description" hcl:"description,optional"`
	Group       string `json:"group,omitempty" yaml:"group,omitempty" toml:"group" hcl:"group,optional"`

	Options  map[string]string `json:"options,omitempty" yaml:"options,omitempty" toml:"options" hcl:"options,optional"`
	Ignore   []string          `json:"ignore,omitempty" yaml:"ignore,omitempty" toml:"ignore" hcl:"ignore,optional"`
	Mappings []MappingConfig   `json:"mappings,omitempty" yaml:"mappings,omitempty" toml:"mappings" hcl:"mapping,block"`

	Transformer        string            `json:"transformer,omitempty" yaml:"transformer,omitempty" toml:"transformer" hcl:"transformer,optional"`
	TransformerOptions map[string]string `json:"transformer_options,omitempty" yaml:"transformer_options,omitempty" toml:"transformer_options" hcl:"transformer_options,optional"`

	Password        string `json:"password,omitempty" yaml:"password,omitempty" toml:"password" hcl:"password,optional"`
	PasswordKeyring string `json:"password_keyring,omitempty" yaml:"password_keyring,omitempty" toml:"password_keyring" hcl:"password_keyring,optional"`

	SyncWhenOpen bool `json:"sync_when_open,omitempty" yaml:"sync_when_open,omitempty" toml:"sync_when_open" hcl:"sync_when_open,optional"`

	Prepare      []OperationConfig `json:"prepare,omitempty" yaml:"prepare,omitempty" toml:"prepare" hcl:"prepare,block"`
	BeforeDeploy []OperationConfig `json:"before_deploy,omitempty" yaml:"before_deploy,omitempty" toml:"before_deploy" hcl:"before_deploy,block"`
	Deployed     []OperationConfig `json:"deployed,omitempty" yaml:"deployed,omitempty" toml:"deployed" hcl:"deployed,block"`
}

// 📁 MappingConfig maps local directories to a remote directory
type MappingConfig struct {
	Source      string `json:"source" yaml:"source" toml:"source" hcl:"source"`
	Destination string `json:"destination" yaml:"destination" toml:"destination" hcl:"destination"`
}

// ⚙️ OperationConfig declares one target operation
type OperationConfig struct {
	Type         string            `json:"type,omitempty" yaml:"type,omitempty" toml:"type" hcl:"type,optional"`
	Name         string            `json:"name,omitempty" yaml:"name,omitempty" toml:"name" hcl:"name,optional"`
	Options      map[string]string `json:"options,omitempty" yaml:"options,omitempty" toml:"options" hcl:"options,optional"`
	IgnoreIfFail bool              `json:"ignore_if_fail,omitempty" yaml:"ignore_if_fail,omitempty" toml:"ignore_if_fail" hcl:"ignore_if_fail,optional"`
	ReloadFiles  bool              `json:"reload_files,omitempty" yaml:"reload_files,omitempty" toml:"reload_files" hcl:"reload_files,optional"`
}

// 📦 PackageConfig is a named set of files deployed together
type PackageConfig struct {
	Name        string   `json:"name" yaml:"name" toml:"name" hcl:"name,label"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" toml:"description" hcl:"description,optional"`
	Files       []string `json:"files" yaml:"files" toml:"files" hcl:"files"`
	Exclude     []string `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude" hcl:"exclude,optional"`
	Targets     []string `json:"targets,omitempty" yaml:"targets,omitempty" toml:"targets" hcl:"targets,optional"`

	DeployOnSave bool `json:"deploy_on_save,omitempty" yaml:"deploy_on_save,omitempty" toml:"deploy_on_save" hcl:"deploy_on_save,optional"`
}

// Matches reports whether the slash separated workspace path rel is selected by the package
func (p *PackageConfig) Matches(rel string) bool {
	rel = trimPattern(rel)
	if !matchAny(p.Files, rel) {
		return false
	}
	return !matchAny(p.Exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		pattern = trimPattern(pattern)
		if pattern == "" {
			continue
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func trimPattern(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "/")
}

// Location returns the path the config was loaded from
func (c *DeployrcConfig) Location() string {
	return c.location
}

// Root returns the workspace root: the directory of the config file, or "." when unknown
func (c *DeployrcConfig) Root() string {
	if c.location == "" {
		return "."
	}
	return filepath.Dir(c.location)
}

// 🎯 ConfiguredTargets returns the runtime targets of the config.
// The same pointers are returned on every call, so in-progress annotations are shared.
func (c *DeployrcConfig) ConfiguredTargets() []*target.Target {
	c.once.Do(func() {
		c.targets = make([]*target.Target, 0, len(c.Targets))
		for _, tc := range c.Targets {
			c.targets = append(c.targets, tc.toTarget())
		}
	})
	return c.targets
}

// TargetByName finds a target by name, case insensitive
func (c *DeployrcConfig) TargetByName(name string) (*target.Target, bool) {
	id := targetID(name)
	for _, t := range c.ConfiguredTargets() {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Package finds a package by name
func (c *DeployrcConfig) Package(name string) (*PackageConfig, bool) {
	for i := range c.Packages {
		if c.Packages[i].Name == name {
			return &c.Packages[i], true
		}
	}
	return nil, false
}

// PackageTargets returns the default targets of a package
func (c *DeployrcConfig) PackageTargets(p *PackageConfig) ([]*target.Target, error) {
	var out []*target.Target
	for _, name := range p.Targets {
		t, ok := c.TargetByName(name)
		if !ok {
			return nil, errors.Errorf("package %q: unknown target %q", p.Name, name)
		}
		out = append(out, t)
	}
	return out, nil
}

// 💾 SaveTargets returns the targets of every deploy_on_save package selecting rel, each target once
func (c *DeployrcConfig) SaveTargets(rel string) ([]*target.Target, error) {
	var out []*target.Target
	seen := map[*target.Target]bool{}
	for i := range c.Packages {
		p := &c.Packages[i]
		if !p.DeployOnSave || !p.Matches(rel) {
			continue
		}
		targets, err := c.PackageTargets(p)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// targetID derives the stable identifier of a target from its name.
// Per-target state is keyed by it, so reordering targets keeps their state.
func targetID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (tc TargetConfig) toTarget() *target.Target {
	t := &target.Target{
		ID:                 targetID(tc.Name),
		Name:               tc.Name,
		Type:               tc.Type,
		Description:        tc.Description,
		Group:              tc.Group,
		Options:            maps.Clone(tc.Options),
		Ignore:             append([]string(nil), tc.Ignore...),
		Transformer:        tc.Transformer,
		TransformerOptions: maps.Clone(tc.TransformerOptions),
		Password:           tc.Password,
		PasswordKeyring:    tc.PasswordKeyring,
		SyncWhenOpen:       tc.SyncWhenOpen,
		Prepare:            toOperations(tc.Prepare),
		BeforeDeploy:       toOperations(tc.BeforeDeploy),
		Deployed:           toOperations(tc.Deployed),
	}
	for _, m := range tc.Mappings {
		t.Mappings = append(t.Mappings, target.FolderMapping{Source: m.Source, Destination: m.Destination})
	}
	return t
}

func toOperations(ops []OperationConfig) []target.Operation {
	if len(ops) == 0 {
		return nil
	}
	out := make([]target.Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, target.Operation{
			Type:         op.Type,
			Name:         op.Name,
			Options:      maps.Clone(op.Options),
			IgnoreIfFail: op.IgnoreIfFail,
			ReloadFiles:  op.ReloadFiles,
		})
	}
	return out
}

// ✅ Validate checks the config for missing and conflicting values
func Validate(ctx context.Context, cfg *DeployrcConfig) error {
	logger := zerolog.Ctx(ctx)

	if cfg == nil {
		return errors.New("config is nil")
	}
	if len(cfg.Targets) == 0 {
		return errors.New("at least one target is required")
	}

	if err := validatePatterns("ignore", cfg.Ignore); err != nil {
		return err
	}

	seen := map[string]bool{}
	for i, tc := range cfg.Targets {
		id := targetID(tc.Name)
		if id == "" {
			return errors.Errorf("target #%d: name is required", i+1)
		}
		if seen[id] {
			return errors.Errorf("target %q: duplicate name", tc.Name)
		}
		seen[id] = true

		if target.NormalizeType(tc.Type) == "" {
			return errors.Errorf("target %q: type is required", tc.Name)
		}
		if err := validatePatterns("target "+tc.Name+" ignore", tc.Ignore); err != nil {
			return err
		}
		for j, m := range tc.Mappings {
			if strings.TrimSpace(m.Source) == "" || strings.TrimSpace(m.Destination) == "" {
				return errors.Errorf("target %q: mapping #%d needs source and destination", tc.Name, j+1)
			}
			if !doublestar.ValidatePattern(filepath.ToSlash(m.Source)) {
				return errors.Errorf("target %q: mapping #%d: invalid pattern %q", tc.Name, j+1, m.Source)
			}
		}
		for _, ops := range [][]OperationConfig{tc.BeforeDeploy, tc.Deployed} {
			for j, op := range ops {
				if op.ReloadFiles {
					logger.Warn().Str("target", tc.Name).Int("operation", j+1).Msg("reload_files is only honored for prepare operations")
				}
			}
		}
	}

	pkgs := map[string]bool{}
	for i, p := range cfg.Packages {
		if strings.TrimSpace(p.Name) == "" {
			return errors.Errorf("package #%d: name is required", i+1)
		}
		if pkgs[p.Name] {
			return errors.Errorf("package %q: duplicate name", p.Name)
		}
		pkgs[p.Name] = true

		if len(p.Files) == 0 {
			return errors.Errorf("package %q: at least one files pattern is required", p.Name)
		}
		if err := validatePatterns("package "+p.Name+" files", p.Files); err != nil {
			return err
		}
		if err := validatePatterns("package "+p.Name+" exclude", p.Exclude); err != nil {
			return err
		}
		for _, name := range p.Targets {
			if !seen[targetID(name)] {
				return errors.Errorf("package %q: unknown target %q", p.Name, name)
			}
		}
	}

	return nil
}

func validatePatterns(field string, patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return errors.Errorf("%s: invalid pattern %q", field, p)
		}
	}
	return nil
}
