package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/maraichr/batislens/internal/workspace"
)

type Config struct {
	Server    ServerConfig
	Valkey    ValkeyConfig
	Workspace WorkspaceConfig
	Watch     WatchConfig
	Validate  ValidateConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Metrics      bool
}

type ValkeyConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
	// GroupPrefix is joined with Consumer to name this process's consumer
	// group. Every process reads the whole stream.
	GroupPrefix string
	Consumer    string
}

// WorkspaceConfig points at the YAML file declaring the projects.
type WorkspaceConfig struct {
	File string
}

type WatchConfig struct {
	Enabled  bool
	Debounce time.Duration
}

type ValidateConfig struct {
	Workers      int
	ParseWorkers int
	QueueSize    int
}

type LogConfig struct {
	Level slog.Level
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "batislens"
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
			Metrics:      getEnvBool("METRICS_ENABLED", true),
		},
		Valkey: ValkeyConfig{
			Enabled:     getEnvBool("VALKEY_ENABLED", false),
			Addr:        getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:    getEnv("VALKEY_PASSWORD", ""),
			DB:          getEnvInt("VALKEY_DB", 0),
			Stream:      getEnv("VALKEY_STREAM", "batislens:changes"),
			GroupPrefix: getEnv("VALKEY_GROUP_PREFIX", "batislens"),
			Consumer:    getEnv("VALKEY_CONSUMER", hostname),
		},
		Workspace: WorkspaceConfig{
			File: getEnv("WORKSPACE_FILE", "batislens.yaml"),
		},
		Watch: WatchConfig{
			Enabled:  getEnvBool("WATCH_ENABLED", true),
			Debounce: time.Duration(getEnvInt("WATCH_DEBOUNCE_MS", 300)) * time.Millisecond,
		},
		Validate: ValidateConfig{
			Workers:      getEnvInt("VALIDATE_WORKERS", 4),
			ParseWorkers: getEnvInt("PARSE_WORKERS", 8),
			QueueSize:    getEnvInt("REVALIDATE_QUEUE_SIZE", 256),
		},
		Log: LogConfig{Level: level},
	}
	return cfg, nil
}

// WorkspaceFile is the on-disk form of the workspace declaration.
type WorkspaceFile struct {
	Projects []workspace.Project `yaml:"projects"`
}

// LoadWorkspace reads the projects declared in a YAML workspace file. A
// relative root is taken relative to the file's directory.
func LoadWorkspace(path string) ([]workspace.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace file: %w", err)
	}
	return ParseWorkspace(data, dirOf(path))
}

// ParseWorkspace decodes a workspace declaration. base resolves relative
// project roots.
func ParseWorkspace(data []byte, base string) ([]workspace.Project, error) {
	var wf WorkspaceFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workspace file: %w", err)
	}
	seen := make(map[workspace.Key]bool, len(wf.Projects))
	for i, p := range wf.Projects {
		if p.Key == "" {
			return nil, fmt.Errorf("project %d: key is required", i)
		}
		if seen[p.Key] {
			return nil, fmt.Errorf("project %s: duplicate key", p.Key)
		}
		seen[p.Key] = true
		if p.RootURL == "" {
			return nil, fmt.Errorf("project %s: root is required", p.Key)
		}
		if !strings.Contains(p.RootURL, "://") && !strings.HasPrefix(p.RootURL, "/") && base != "" {
			root := strings.TrimSuffix(base, "/")
			if rel := strings.TrimPrefix(p.RootURL, "./"); rel != "." {
				root += "/" + rel
			}
			wf.Projects[i].RootURL = root
		}
	}
	return wf.Projects, nil
}

func dirOf(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[:i]
	}
	return ""
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
