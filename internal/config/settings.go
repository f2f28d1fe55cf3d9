package config

import (
	"errors"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultAPIURL = "https://app.terraform.io"

	defaultAPITimeoutSeconds = 10

	defaultRunFloorMS      = 2000
	defaultRunCeilingMS    = 30000
	defaultRunMultiplier   = 1.5
	defaultRunFirstTickMS  = 10
	defaultRunFetchRetries = 3

	defaultWorkspaceFloorMS    = 2000
	defaultWorkspaceCeilingMS  = 10000
	defaultWorkspaceMultiplier = 1.2

	defaultOrganizationCacheSize = 10
	defaultWorkspaceCacheSize    = 20
	defaultDocumentCacheSize     = 20
	defaultDocumentTTLSeconds    = 10

	StorageBackendBbolt = "bbolt"
	StorageBackendFile  = "file"

	defaultRenderWidth = 100
)

type Config struct {
	API     APIConfig     `toml:"api"`
	Logging LoggingConfig `toml:"logging"`
	Poll    PollConfig    `toml:"poll"`
	Cache   CacheConfig   `toml:"cache"`
	Storage StorageConfig `toml:"storage"`
	Render  RenderConfig  `toml:"render"`
}

type APIConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type PollConfig struct {
	Run       RunPollConfig       `toml:"run"`
	Workspace WorkspacePollConfig `toml:"workspace"`
}

type RunPollConfig struct {
	FloorMS        int     `toml:"floor_ms"`
	CeilingMS      int     `toml:"ceiling_ms"`
	Multiplier     float64 `toml:"multiplier"`
	FirstTickMS    int     `toml:"first_tick_ms"`
	CostEstimate   bool    `toml:"cost_estimate"`
	PolicyOverride *bool   `toml:"policy_override"`
	FetchRetries   *int    `toml:"fetch_retries"`
}

type WorkspacePollConfig struct {
	FloorMS    int     `toml:"floor_ms"`
	CeilingMS  int     `toml:"ceiling_ms"`
	Multiplier float64 `toml:"multiplier"`
}

type CacheConfig struct {
	Organizations      int `toml:"organizations"`
	Workspaces         int `toml:"workspaces"`
	Documents          int `toml:"documents"`
	DocumentTTLSeconds int `toml:"document_ttl_seconds"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`
}

type RenderConfig struct {
	Style string `toml:"style"`
	Width int    `toml:"width"`
}

// Interval is a resolved floor/ceiling/multiplier triple.
type Interval struct {
	Floor      time.Duration
	Ceiling    time.Duration
	Multiplier float64
}

func Default() Config {
	return Config{
		API: APIConfig{
			URL:            DefaultAPIURL,
			TimeoutSeconds: defaultAPITimeoutSeconds,
		},
		Logging: LoggingConfig{Level: "info"},
		Poll: PollConfig{
			Run: RunPollConfig{
				FloorMS:     defaultRunFloorMS,
				CeilingMS:   defaultRunCeilingMS,
				Multiplier:  defaultRunMultiplier,
				FirstTickMS: defaultRunFirstTickMS,
			},
			Workspace: WorkspacePollConfig{
				FloorMS:    defaultWorkspaceFloorMS,
				CeilingMS:  defaultWorkspaceCeilingMS,
				Multiplier: defaultWorkspaceMultiplier,
			},
		},
		Cache: CacheConfig{
			Organizations:      defaultOrganizationCacheSize,
			Workspaces:         defaultWorkspaceCacheSize,
			Documents:          defaultDocumentCacheSize,
			DocumentTTLSeconds: defaultDocumentTTLSeconds,
		},
		Storage: StorageConfig{Backend: StorageBackendBbolt},
		Render:  RenderConfig{Style: "auto", Width: defaultRenderWidth},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFromPath(path)
}

func LoadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) APIURL() string {
	url := strings.TrimRight(strings.TrimSpace(c.API.URL), "/")
	if url == "" {
		return DefaultAPIURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url
}

func (c Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return defaultAPITimeoutSeconds * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (c Config) RunPollInterval() Interval {
	run := c.Poll.Run
	return normalizeInterval(run.FloorMS, run.CeilingMS, run.Multiplier,
		defaultRunFloorMS, defaultRunCeilingMS, defaultRunMultiplier)
}

func (c Config) WorkspacePollInterval() Interval {
	ws := c.Poll.Workspace
	return normalizeInterval(ws.FloorMS, ws.CeilingMS, ws.Multiplier,
		defaultWorkspaceFloorMS, defaultWorkspaceCeilingMS, defaultWorkspaceMultiplier)
}

func (c Config) RunFirstTickDelay() time.Duration {
	if c.Poll.Run.FirstTickMS < 0 {
		return defaultRunFirstTickMS * time.Millisecond
	}
	return time.Duration(c.Poll.Run.FirstTickMS) * time.Millisecond
}

func (c Config) CostEstimatePhase() bool {
	return c.Poll.Run.CostEstimate
}

func (c Config) PolicyOverridePhase() bool {
	if c.Poll.Run.PolicyOverride == nil {
		return true
	}
	return *c.Poll.Run.PolicyOverride
}

// FetchRetries is how many extra attempts a transient fetch failure gets
// before the poll session fails.
func (c Config) FetchRetries() int {
	if c.Poll.Run.FetchRetries == nil || *c.Poll.Run.FetchRetries < 0 {
		return defaultRunFetchRetries
	}
	return *c.Poll.Run.FetchRetries
}

func (c Config) OrganizationCacheSize() int {
	return positiveOr(c.Cache.Organizations, defaultOrganizationCacheSize)
}

func (c Config) WorkspaceCacheSize() int {
	return positiveOr(c.Cache.Workspaces, defaultWorkspaceCacheSize)
}

func (c Config) DocumentCacheSize() int {
	return positiveOr(c.Cache.Documents, defaultDocumentCacheSize)
}

func (c Config) DocumentTTL() time.Duration {
	return time.Duration(positiveOr(c.Cache.DocumentTTLSeconds, defaultDocumentTTLSeconds)) * time.Second
}

func (c Config) StorageBackend() string {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case StorageBackendFile:
		return StorageBackendFile
	default:
		return StorageBackendBbolt
	}
}

func (c Config) RenderStyle() string {
	style := strings.TrimSpace(c.Render.Style)
	if style == "" {
		return "auto"
	}
	return style
}

func (c Config) RenderWidth() int {
	return positiveOr(c.Render.Width, defaultRenderWidth)
}

func normalizeInterval(floorMS, ceilingMS int, multiplier float64, defFloor, defCeiling int, defMultiplier float64) Interval {
	if floorMS <= 0 {
		floorMS = defFloor
	}
	if ceilingMS <= 0 {
		ceilingMS = defCeiling
	}
	if ceilingMS < floorMS {
		ceilingMS = floorMS
	}
	if multiplier < 1 {
		multiplier = defMultiplier
	}
	return Interval{
		Floor:      time.Duration(floorMS) * time.Millisecond,
		Ceiling:    time.Duration(ceilingMS) * time.Millisecond,
		Multiplier: multiplier,
	}
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}
