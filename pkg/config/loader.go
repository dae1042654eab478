package config

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the workspace root
const DefaultFileName = ".deployrc"

// LoadConfig loads a configuration file from the given path.
// The format is determined by the file extension:
// - .json for JSON
// - .yaml or .yml for YAML
// - .hcl for HCL
// - .toml for TOML
// - .deployrc will try both YAML and HCL formats
func LoadConfig(ctx context.Context, path string) (*DeployrcConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if filepath.Base(path) == DefaultFileName {
		ext = DefaultFileName
	}

	var cfg *DeployrcConfig
	switch ext {
	case DefaultFileName:
		cfg, err = loadYAML(data)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("not YAML, trying HCL")
			var herr error
			cfg, herr = loadHCL(data, path)
			if herr != nil {
				return nil, errors.Errorf("failed to parse %s as YAML or HCL: %w", path, herr)
			}
			err = nil
		}
	case ".json":
		cfg, err = loadJSON(data)
	case ".yaml", ".yml":
		cfg, err = loadYAML(data)
	case ".hcl":
		cfg, err = loadHCL(data, path)
	case ".toml":
		cfg, err = loadTOML(data)
	default:
		return nil, errors.Errorf("unsupported file extension %q", ext)
	}

	if err != nil {
		return nil, err
	}
	cfg.location = path
	if err := Validate(ctx, cfg); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Int("targets", len(cfg.Targets)).Int("packages", len(cfg.Packages)).Msg("config loaded")

	return cfg, nil
}

// FindConfig looks for a config file in dir, trying .deployrc then the deployrc.* variants
func FindConfig(dir string) (string, error) {
	candidates := []string{
		DefaultFileName,
		"deployrc.yaml",
		"deployrc.yml",
		"deployrc.json",
		"deployrc.hcl",
		"deployrc.toml",
	}
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", errors.Errorf("no config file found in %s (tried %s)", dir, strings.Join(candidates, ", "))
}

// loadJSON loads a configuration from JSON data
func loadJSON(data []byte) (*DeployrcConfig, error) {
	var cfg DeployrcConfig
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &cfg, nil
}

// loadYAML loads a configuration from YAML data
func loadYAML(data []byte) (*DeployrcConfig, error) {
	var cfg DeployrcConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// loadTOML loads a configuration from TOML data
func loadTOML(data []byte) (*DeployrcConfig, error) {
	var cfg DeployrcConfig
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, errors.Errorf("parsing TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Errorf("parsing TOML: unknown keys: %s", strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// loadHCL loads a configuration from HCL data.
// Environment variables are available as env.NAME.
func loadHCL(data []byte, filename string) (*DeployrcConfig, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(),
		},
	}

	var cfg DeployrcConfig
	diags = gohcl.DecodeBody(hclFile.Body, ctx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	return &cfg, nil
}

func envObject() cty.Value {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !hclsyntax.ValidIdentifier(k) {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}
