package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Trend baselines accepted by TrendBaseline.
const (
	TrendBaselineEstimated = "estimated"
	TrendBaselineMeasured  = "measured"
)

// Profile is configuration to start main server.
type Profile struct {
	// Coach configuration (OpenAI-compatible protocol)
	CoachProvider string  // Provider identifier: openai, deepseek, zai, siliconflow, ollama
	CoachAPIKey   string  // Coach is disabled without an API key
	CoachBaseURL  string  // Optional, has default per provider
	CoachModel    string  // Model name: gpt-4o-mini, deepseek-chat, etc.
	CoachTimeout  int     // Coach request timeout in seconds (default: 30)
	CoachRate     float64 // Coach requests per second allowed across users (default: 1)

	// Analytics configuration
	Timezone        string // IANA zone used as the reference location of "now"
	TrendBaseline   string // estimated or measured
	ReportCacheSize int    // Number of cached reports, 0 disables the cache
	ReportCacheTTL  int    // Report cache TTL in seconds

	// Logging configuration
	LogLevel  string
	LogFormat string

	// Other configurations
	Mode    string
	Addr    string
	Data    string
	Driver  string
	DSN     string
	Version string
	Port    int
}

// Provider default configurations for the coach.
// Used when HABITSENSE_COACH_BASE_URL is not explicitly set.
var coachProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-7B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsCoachEnabled returns true if the coach API key is configured.
func (p *Profile) IsCoachEnabled() bool {
	return p.CoachAPIKey != ""
}

// Location returns the reference location for analyses. Validate guarantees it loads.
func (p *Profile) Location() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads the coach configuration from environment variables and fills
// unset analytics settings with their defaults.
func (p *Profile) FromEnv() {
	p.CoachProvider = getEnvOrDefault("HABITSENSE_COACH_PROVIDER", "openai")
	p.CoachAPIKey = getEnvOrDefault("HABITSENSE_COACH_API_KEY", "")
	p.CoachBaseURL = getEnvOrDefault("HABITSENSE_COACH_BASE_URL", "")
	p.CoachModel = getEnvOrDefault("HABITSENSE_COACH_MODEL", "")
	p.CoachTimeout = getEnvOrDefaultInt("HABITSENSE_COACH_TIMEOUT_SECONDS", 30)
	p.CoachRate = getEnvOrDefaultFloat("HABITSENSE_COACH_RATE", 1)

	if _, ok := coachProviderDefaults[p.CoachProvider]; !ok {
		slog.Warn("Unknown coach provider, using default: openai", "provider", p.CoachProvider)
		p.CoachProvider = "openai"
	}
	if defaults, ok := coachProviderDefaults[p.CoachProvider]; ok {
		if p.CoachBaseURL == "" {
			p.CoachBaseURL = defaults.BaseURL
		}
		if p.CoachModel == "" {
			p.CoachModel = defaults.Model
		}
	}

	if p.Timezone == "" {
		p.Timezone = getEnvOrDefault("HABITSENSE_TIMEZONE", "")
	}
	if p.TrendBaseline == "" {
		p.TrendBaseline = getEnvOrDefault("HABITSENSE_TREND_BASELINE", TrendBaselineEstimated)
	}
	if p.ReportCacheTTL <= 0 {
		p.ReportCacheTTL = getEnvOrDefaultInt("HABITSENSE_REPORT_CACHE_TTL_SECONDS", 300)
	}
	if p.LogLevel == "" {
		p.LogLevel = getEnvOrDefault("HABITSENSE_LOG_LEVEL", "info")
	}
	if p.LogFormat == "" {
		p.LogFormat = getEnvOrDefault("HABITSENSE_LOG_FORMAT", "json")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return errors.Wrapf(err, "invalid timezone %s", p.Timezone)
		}
	}
	switch p.TrendBaseline {
	case "":
		p.TrendBaseline = TrendBaselineEstimated
	case TrendBaselineEstimated, TrendBaselineMeasured:
	default:
		return errors.Errorf("invalid trend baseline %q, want %q or %q", p.TrendBaseline, TrendBaselineEstimated, TrendBaselineMeasured)
	}
	if p.ReportCacheSize < 0 {
		return errors.Errorf("invalid report cache size %d", p.ReportCacheSize)
	}

	switch p.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}
	if p.Driver == "postgres" {
		if p.DSN == "" {
			return errors.New("dsn required for postgres driver")
		}
		return nil
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "habitsense")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/habitsense"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("habitsense_%s.db", p.Mode))
	}
	return nil
}
