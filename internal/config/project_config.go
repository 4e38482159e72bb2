package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const scaffoldName = "deepagents.config.yaml"

// InitProjectConfigScaffold 在 dir 下初始化项目级配置模板（deepagents.config.yaml）。
// InitProjectConfigScaffold writes a project config template into dir and
// returns its path. Existing project configs are left untouched.
func InitProjectConfigScaffold(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get current working directory: %w", err)
		}
		dir = cwd
	}

	for _, name := range []string{"deepagents.config.json", "deepagents.config.jsonc", scaffoldName, "deepagents.config.yml"} {
		existing := filepath.Join(dir, name)
		info, err := os.Stat(existing)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("project config path is a directory: %s", existing)
			}
			return existing, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat project config: %w", err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	cfg := Default()
	cfg.Storage.BaseDir = "~/.deepagents"
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	path := filepath.Join(dir, scaffoldName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write project config: %w", err)
	}
	return path, nil
}
