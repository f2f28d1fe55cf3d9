package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"strings"

	"tfcview/internal/config"

	toml "github.com/pelletier/go-toml/v2"
)

type ConfigCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (config.Config, error)
}

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"

	configScopeAPI     = "api"
	configScopePoll    = "poll"
	configScopeCache   = "cache"
	configScopeStorage = "storage"
	configScopeRender  = "render"
)

var allConfigScopes = []string{configScopeAPI, configScopePoll, configScopeCache, configScopeStorage, configScopeRender}

type configOutput struct {
	ConfigPath string                  `json:"config_path,omitempty" toml:"config_path,omitempty"`
	API        *effectiveAPIConfig     `json:"api,omitempty" toml:"api,omitempty"`
	Logging    *effectiveLoggingConfig `json:"logging,omitempty" toml:"logging,omitempty"`
	Poll       *effectivePollConfig    `json:"poll,omitempty" toml:"poll,omitempty"`
	Cache      *effectiveCacheConfig   `json:"cache,omitempty" toml:"cache,omitempty"`
	Storage    *effectiveStorageConfig `json:"storage,omitempty" toml:"storage,omitempty"`
	Render     *effectiveRenderConfig  `json:"render,omitempty" toml:"render,omitempty"`
}

type effectiveAPIConfig struct {
	URL            string `json:"url" toml:"url"`
	TimeoutSeconds int    `json:"timeout" toml:"timeout"`
}

type effectiveLoggingConfig struct {
	Level string `json:"level" toml:"level"`
}

type effectivePollConfig struct {
	Run       effectiveRunPollConfig     `json:"run" toml:"run"`
	Workspace effectiveIntervalConfigOut `json:"workspace" toml:"workspace"`
}

type effectiveIntervalConfigOut struct {
	FloorMS    int64   `json:"floor_ms" toml:"floor_ms"`
	CeilingMS  int64   `json:"ceiling_ms" toml:"ceiling_ms"`
	Multiplier float64 `json:"multiplier" toml:"multiplier"`
}

type effectiveRunPollConfig struct {
	FloorMS        int64   `json:"floor_ms" toml:"floor_ms"`
	CeilingMS      int64   `json:"ceiling_ms" toml:"ceiling_ms"`
	Multiplier     float64 `json:"multiplier" toml:"multiplier"`
	FirstTickMS    int64   `json:"first_tick_ms" toml:"first_tick_ms"`
	CostEstimate   bool    `json:"cost_estimate" toml:"cost_estimate"`
	PolicyOverride bool    `json:"policy_override" toml:"policy_override"`
	FetchRetries   int     `json:"fetch_retries" toml:"fetch_retries"`
}

type effectiveCacheConfig struct {
	Organizations      int `json:"organizations" toml:"organizations"`
	Workspaces         int `json:"workspaces" toml:"workspaces"`
	Documents          int `json:"documents" toml:"documents"`
	DocumentTTLSeconds int `json:"document_ttl_seconds" toml:"document_ttl_seconds"`
}

type effectiveStorageConfig struct {
	Backend string `json:"backend" toml:"backend"`
}

type effectiveRenderConfig struct {
	Style string `json:"style" toml:"style"`
	Width int    `json:"width" toml:"width"`
}

func NewConfigCommand(stdout, stderr io.Writer, loadConfig func() (config.Config, error)) *ConfigCommand {
	if loadConfig == nil {
		loadConfig = config.Load
	}
	return &ConfigCommand{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: loadConfig,
	}
}

func (c *ConfigCommand) Run(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	defaults := fs.Bool("default", false, "print default config values")
	format := fs.String("format", configFormatJSON, "output format: json|toml")
	var scopes stringList
	fs.Var(&scopes, "scope", "scope to print: api|poll|cache|storage|render|all (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resolvedFormat, err := resolveConfigFormat(*format)
	if err != nil {
		return err
	}
	resolvedScopes, err := resolveConfigScopes(scopes)
	if err != nil {
		return err
	}
	cfg := config.Default()
	if !*defaults {
		cfg, err = c.loadConfig()
		if err != nil {
			return err
		}
	}
	out := buildConfigOutput(cfg, resolvedScopes)
	if path, err := config.ConfigPath(); err == nil {
		out.ConfigPath = path
	}
	return writeConfigOutput(c.stdout, resolvedFormat, out)
}

func buildConfigOutput(cfg config.Config, scopes map[string]struct{}) configOutput {
	out := configOutput{}
	if scopeSelected(scopes, configScopeAPI) {
		out.API = &effectiveAPIConfig{
			URL:            cfg.APIURL(),
			TimeoutSeconds: int(cfg.APITimeout().Seconds()),
		}
		out.Logging = &effectiveLoggingConfig{Level: cfg.LogLevel()}
	}
	if scopeSelected(scopes, configScopePoll) {
		run := cfg.RunPollInterval()
		ws := cfg.WorkspacePollInterval()
		out.Poll = &effectivePollConfig{
			Run: effectiveRunPollConfig{
				FloorMS:        run.Floor.Milliseconds(),
				CeilingMS:      run.Ceiling.Milliseconds(),
				Multiplier:     run.Multiplier,
				FirstTickMS:    cfg.RunFirstTickDelay().Milliseconds(),
				CostEstimate:   cfg.CostEstimatePhase(),
				PolicyOverride: cfg.PolicyOverridePhase(),
				FetchRetries:   cfg.FetchRetries(),
			},
			Workspace: effectiveIntervalConfigOut{
				FloorMS:    ws.Floor.Milliseconds(),
				CeilingMS:  ws.Ceiling.Milliseconds(),
				Multiplier: ws.Multiplier,
			},
		}
	}
	if scopeSelected(scopes, configScopeCache) {
		out.Cache = &effectiveCacheConfig{
			Organizations:      cfg.OrganizationCacheSize(),
			Workspaces:         cfg.WorkspaceCacheSize(),
			Documents:          cfg.DocumentCacheSize(),
			DocumentTTLSeconds: int(cfg.DocumentTTL().Seconds()),
		}
	}
	if scopeSelected(scopes, configScopeStorage) {
		out.Storage = &effectiveStorageConfig{Backend: cfg.StorageBackend()}
	}
	if scopeSelected(scopes, configScopeRender) {
		out.Render = &effectiveRenderConfig{Style: cfg.RenderStyle(), Width: cfg.RenderWidth()}
	}
	return out
}

func writeConfigOutput(out io.Writer, format string, payload any) error {
	switch format {
	case configFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case configFormatTOML:
		data, err := toml.Marshal(payload)
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = out.Write(data)
		return err
	default:
		return errors.New("unsupported format")
	}
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", configFormatJSON:
		return configFormatJSON, nil
	case configFormatTOML:
		return configFormatTOML, nil
	default:
		return "", errors.New("invalid format: must be json or toml")
	}
}

func resolveConfigScopes(values []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if len(values) == 0 {
		values = []string{"all"}
	}
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			scope := strings.ToLower(strings.TrimSpace(part))
			if scope == "all" {
				for _, s := range allConfigScopes {
					out[s] = struct{}{}
				}
				continue
			}
			known := false
			for _, s := range allConfigScopes {
				if s == scope {
					known = true
					break
				}
			}
			if !known {
				return nil, errors.New("invalid scope: must be api, poll, cache, storage, render, or all")
			}
			out[scope] = struct{}{}
		}
	}
	return out, nil
}

func scopeSelected(scopes map[string]struct{}, scope string) bool {
	_, ok := scopes[scope]
	return ok
}

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
