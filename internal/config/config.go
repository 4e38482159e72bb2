package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	MirrorDisk   = "disk"
	MirrorSQLite = "sqlite"
	MirrorNone   = "none"
)

const (
	DefaultRuntimeMaxSteps          = 64
	DefaultRuntimeContextTokenLimit = 120000
	DefaultRuntimeMaxParallelTools  = 4
	DefaultProviderMaxRetries       = 2
)

type ProviderConfig struct {
	BaseURL    string `json:"base_url" yaml:"base_url"`
	Model      string `json:"model" yaml:"model"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	TimeoutMS  int    `json:"timeout_ms" yaml:"timeout_ms"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries"`
}

type RuntimeConfig struct {
	WorkspaceRoot     string `json:"workspace_root" yaml:"workspace_root"`
	MaxSteps          int    `json:"max_steps" yaml:"max_steps"`
	ContextTokenLimit int    `json:"context_token_limit" yaml:"context_token_limit"`
	MaxParallelTools  int    `json:"max_parallel_tools" yaml:"max_parallel_tools"`
}

// MirrorConfig 选择工作区文件的持久化镜像
// MirrorConfig selects where workspace writes are mirrored: disk, sqlite or none.
type MirrorConfig struct {
	Backend string `json:"backend" yaml:"backend"`
}

type StorageConfig struct {
	BaseDir  string `json:"base_dir" yaml:"base_dir"`
	LogMaxMB int    `json:"log_max_mb" yaml:"log_max_mb"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

type Config struct {
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Runtime  RuntimeConfig  `json:"runtime" yaml:"runtime"`
	Mirror   MirrorConfig   `json:"mirror" yaml:"mirror"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

type fileConfig struct {
	Provider *ProviderConfig `json:"provider" yaml:"provider"`
	Runtime  *RuntimeConfig  `json:"runtime" yaml:"runtime"`
	Mirror   *MirrorConfig   `json:"mirror" yaml:"mirror"`
	Storage  *StorageConfig  `json:"storage" yaml:"storage"`
	Log      *LogConfig      `json:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			TimeoutMS:  120000,
			MaxRetries: DefaultProviderMaxRetries,
		},
		Runtime: RuntimeConfig{
			MaxSteps:          DefaultRuntimeMaxSteps,
			ContextTokenLimit: DefaultRuntimeContextTokenLimit,
			MaxParallelTools:  DefaultRuntimeMaxParallelTools,
		},
		Mirror: MirrorConfig{Backend: MirrorDisk},
		Storage: StorageConfig{
			BaseDir:  "~/.deepagents",
			LogMaxMB: 20,
		},
		Log: LogConfig{Level: "info"},
	}
}

// DBPath 返回会话数据库路径 / DBPath returns the session database path.
func (c Config) DBPath() string {
	return filepath.Join(c.Storage.BaseDir, "deepagents.db")
}

// LogPath returns the rotating log file path.
func (c Config) LogPath() string {
	return filepath.Join(c.Storage.BaseDir, "logs", "deepagents.log")
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if resolvedPath == "" {
		resolvedPath = strings.TrimSpace(os.Getenv("DEEPAGENTS_CONFIG_PATH"))
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".deepagents", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"deepagents.config.json",
		"deepagents.config.jsonc",
		"deepagents.config.yaml",
		"deepagents.config.yml",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(stripJSONComments(data), &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Runtime != nil {
		cfg.Runtime = mergeRuntime(cfg.Runtime, *fc.Runtime)
	}
	if fc.Mirror != nil && strings.TrimSpace(fc.Mirror.Backend) != "" {
		cfg.Mirror.Backend = fc.Mirror.Backend
	}
	if fc.Storage != nil {
		cfg.Storage = mergeStorage(cfg.Storage, *fc.Storage)
	}
	if fc.Log != nil && strings.TrimSpace(fc.Log.Level) != "" {
		cfg.Log.Level = fc.Log.Level
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	return base
}

func mergeRuntime(base RuntimeConfig, override RuntimeConfig) RuntimeConfig {
	if strings.TrimSpace(override.WorkspaceRoot) != "" {
		base.WorkspaceRoot = override.WorkspaceRoot
	}
	if override.MaxSteps > 0 {
		base.MaxSteps = override.MaxSteps
	}
	if override.ContextTokenLimit > 0 {
		base.ContextTokenLimit = override.ContextTokenLimit
	}
	if override.MaxParallelTools > 0 {
		base.MaxParallelTools = override.MaxParallelTools
	}
	return base
}

func mergeStorage(base StorageConfig, override StorageConfig) StorageConfig {
	if strings.TrimSpace(override.BaseDir) != "" {
		base.BaseDir = override.BaseDir
	}
	if override.LogMaxMB > 0 {
		base.LogMaxMB = override.LogMaxMB
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Provider.MaxRetries < 0 {
		cfg.Provider.MaxRetries = 0
	}

	if cfg.Runtime.MaxSteps <= 0 {
		cfg.Runtime.MaxSteps = def.Runtime.MaxSteps
	}
	if cfg.Runtime.ContextTokenLimit <= 0 {
		cfg.Runtime.ContextTokenLimit = def.Runtime.ContextTokenLimit
	}
	if cfg.Runtime.MaxParallelTools <= 0 {
		cfg.Runtime.MaxParallelTools = def.Runtime.MaxParallelTools
	}
	if root := strings.TrimSpace(cfg.Runtime.WorkspaceRoot); root != "" {
		expanded, err := expandPath(root)
		if err != nil {
			return err
		}
		cfg.Runtime.WorkspaceRoot = expanded
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Mirror.Backend))
	switch backend {
	case "":
		backend = def.Mirror.Backend
	case MirrorDisk, MirrorSQLite, MirrorNone:
	default:
		return fmt.Errorf("invalid mirror.backend %q (want disk, sqlite or none)", cfg.Mirror.Backend)
	}
	cfg.Mirror.Backend = backend

	if strings.TrimSpace(cfg.Storage.BaseDir) == "" {
		cfg.Storage.BaseDir = def.Storage.BaseDir
	}
	storageDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = storageDir
	if cfg.Storage.LogMaxMB <= 0 {
		cfg.Storage.LogMaxMB = def.Storage.LogMaxMB
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("DEEPAGENTS_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPAGENTS_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPAGENTS_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPAGENTS_WORKSPACE_ROOT")); v != "" {
		cfg.Runtime.WorkspaceRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPAGENTS_MAX_STEPS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DEEPAGENTS_MAX_STEPS: %q", v)
		}
		cfg.Runtime.MaxSteps = n
	}
	if v := strings.TrimSpace(os.Getenv("DEEPAGENTS_HOME")); v != "" {
		cfg.Storage.BaseDir = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPAGENTS_MIRROR")); v != "" {
		cfg.Mirror.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPAGENTS_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}

	return cfg, normalize(&cfg)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
