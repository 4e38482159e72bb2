package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points HOME at an empty dir and chdirs into a fresh workspace.
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"DEEPAGENTS_CONFIG_PATH", "DEEPAGENTS_BASE_URL", "DEEPAGENTS_MODEL", "DEEPAGENTS_API_KEY",
		"OPENAI_API_KEY", "DEEPAGENTS_WORKSPACE_ROOT", "DEEPAGENTS_MAX_STEPS", "DEEPAGENTS_HOME",
		"DEEPAGENTS_MIRROR", "DEEPAGENTS_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	work = t.TempDir()
	oldwd, _ := os.Getwd()
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldwd) })
	return home, work
}

func TestLoadDefaults(t *testing.T) {
	home, _ := isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mirror.Backend != MirrorDisk {
		t.Fatalf("backend=%q", cfg.Mirror.Backend)
	}
	if cfg.Runtime.MaxSteps != DefaultRuntimeMaxSteps {
		t.Fatalf("max_steps=%d", cfg.Runtime.MaxSteps)
	}
	if cfg.Runtime.MaxParallelTools != DefaultRuntimeMaxParallelTools {
		t.Fatalf("max_parallel_tools=%d", cfg.Runtime.MaxParallelTools)
	}
	if want := filepath.Join(home, ".deepagents"); cfg.Storage.BaseDir != want {
		t.Fatalf("base_dir=%q want %q", cfg.Storage.BaseDir, want)
	}
	if cfg.DBPath() != filepath.Join(home, ".deepagents", "deepagents.db") {
		t.Fatalf("db path=%q", cfg.DBPath())
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level=%q", cfg.Log.Level)
	}
}

func TestLoadJSONCAndPrecedence(t *testing.T) {
	home, _ := isolate(t)

	globalDir := filepath.Join(home, ".deepagents")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatal(err)
	}
	globalCfg := `{
  // global
  "provider": {"model": "global-model", "timeout_ms": 5000},
  "runtime": {"max_steps": 10}
}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalCfg), 0o644); err != nil {
		t.Fatal(err)
	}
	projectCfg := `{
  /* project wins */
  "provider": {"model": "project-model"},
  "mirror": {"backend": "SQLite"}
}`
	if err := os.WriteFile("deepagents.config.jsonc", []byte(projectCfg), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "project-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Provider.TimeoutMS != 5000 {
		t.Fatalf("timeout_ms=%d", cfg.Provider.TimeoutMS)
	}
	if cfg.Runtime.MaxSteps != 10 {
		t.Fatalf("max_steps=%d", cfg.Runtime.MaxSteps)
	}
	if cfg.Mirror.Backend != MirrorSQLite {
		t.Fatalf("backend=%q", cfg.Mirror.Backend)
	}
}

func TestLoadYAML(t *testing.T) {
	isolate(t)
	yamlCfg := `
provider:
  model: yaml-model
  max_retries: 5
runtime:
  workspace_root: ./research
  max_parallel_tools: 8
log:
  level: DEBUG
`
	if err := os.WriteFile("deepagents.config.yaml", []byte(yamlCfg), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "yaml-model" || cfg.Provider.MaxRetries != 5 {
		t.Fatalf("provider=%+v", cfg.Provider)
	}
	if cfg.Runtime.MaxParallelTools != 8 {
		t.Fatalf("max_parallel_tools=%d", cfg.Runtime.MaxParallelTools)
	}
	if !filepath.IsAbs(cfg.Runtime.WorkspaceRoot) || filepath.Base(cfg.Runtime.WorkspaceRoot) != "research" {
		t.Fatalf("workspace_root=%q", cfg.Runtime.WorkspaceRoot)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level=%q", cfg.Log.Level)
	}
}

func TestExplicitPathOverridesEnvPath(t *testing.T) {
	_, work := isolate(t)
	explicit := filepath.Join(work, "explicit.json")
	envPath := filepath.Join(work, "env.json")
	_ = os.WriteFile(explicit, []byte(`{"provider":{"model":"explicit"}}`), 0o644)
	_ = os.WriteFile(envPath, []byte(`{"provider":{"model":"from-env-path"}}`), 0o644)
	t.Setenv("DEEPAGENTS_CONFIG_PATH", envPath)

	cfg, err := Load(explicit)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "explicit" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "from-env-path" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
}

func TestEnvOverride(t *testing.T) {
	home, _ := isolate(t)
	t.Setenv("DEEPAGENTS_MODEL", "env-model")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("DEEPAGENTS_MAX_STEPS", "7")
	t.Setenv("DEEPAGENTS_MIRROR", "none")
	t.Setenv("DEEPAGENTS_HOME", filepath.Join(home, "alt"))

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "env-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Provider.APIKey != "sk-openai" {
		t.Fatalf("api key=%q", cfg.Provider.APIKey)
	}
	if cfg.Runtime.MaxSteps != 7 {
		t.Fatalf("max_steps=%d", cfg.Runtime.MaxSteps)
	}
	if cfg.Mirror.Backend != MirrorNone {
		t.Fatalf("backend=%q", cfg.Mirror.Backend)
	}
	if cfg.Storage.BaseDir != filepath.Join(home, "alt") {
		t.Fatalf("base_dir=%q", cfg.Storage.BaseDir)
	}

	t.Setenv("DEEPAGENTS_API_KEY", "sk-deep")
	cfg, _ = Load("")
	if cfg.Provider.APIKey != "sk-deep" {
		t.Fatalf("DEEPAGENTS_API_KEY should win, got %q", cfg.Provider.APIKey)
	}
}

func TestInvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("DEEPAGENTS_MAX_STEPS", "zero")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "DEEPAGENTS_MAX_STEPS") {
		t.Fatalf("expected max steps error, got %v", err)
	}

	t.Setenv("DEEPAGENTS_MAX_STEPS", "")
	t.Setenv("DEEPAGENTS_MIRROR", "s3")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "mirror.backend") {
		t.Fatalf("expected mirror error, got %v", err)
	}
}

func TestMalformedConfigFile(t *testing.T) {
	isolate(t)
	if err := os.WriteFile("deepagents.config.json", []byte(`{"provider": `), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStripJSONCommentsKeepsStrings(t *testing.T) {
	in := []byte(`{"url": "http://x//y", /* c */ "a": 1} // tail`)
	got := string(stripJSONComments(in))
	if !strings.Contains(got, `"http://x//y"`) {
		t.Fatalf("string content mangled: %s", got)
	}
	if strings.Contains(got, "tail") || strings.Contains(got, "/*") {
		t.Fatalf("comments kept: %s", got)
	}
}

func TestInitProjectConfigScaffold(t *testing.T) {
	_, work := isolate(t)
	path, err := InitProjectConfigScaffold(work)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "deepagents.config.yaml" {
		t.Fatalf("path=%q", path)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != Default().Provider.Model {
		t.Fatalf("scaffold did not round trip: %+v", cfg.Provider)
	}

	again, err := InitProjectConfigScaffold(work)
	if err != nil || again != path {
		t.Fatalf("second init = %q, %v", again, err)
	}
}
