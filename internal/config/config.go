package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aryankumar/testfleet/internal/util"
)

const (
	// FileName is looked up in the working directory
	FileName = "testfleet.yaml"

	// HomeFileName is looked up in the home directory
	HomeFileName = ".testfleet.yaml"

	envPrefix = "TESTFLEET"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = util.ErrInvalidConfig

// defaults mirror the behavior of running with no configuration at all.
var defaults = map[string]interface{}{
	"pool.workers":          0,
	"pool.addedWorkers":     2,
	"pool.scaleAfter":       "5m",
	"timeouts.worker":       "15m",
	"timeouts.poll":         "1s",
	"timeouts.scan":         "10s",
	"timeouts.queuePoll":    "5s",
	"timeouts.stop":         "10s",
	"valgrind.enabled":      true,
	"valgrind.path":         "valgrind",
	"valgrind.repeat":       3,
	"valgrind.suppressions": "valgrind_ignore.supp",
	"valgrind.extraArgs":    "",
	"valgrind.options":      []string{},
	"valgrind.ignoreFrames": []string{"append_second"},
	"discovery.dir":         ".",
	"discovery.patterns":    []string{"*_test"},
	"report.dir":            "valgrind_report",
	"report.format":         "table",
	"report.noColor":        false,
	"report.wide":           false,
	"cores.enabled":         true,
	"cores.dir":             "",
	"metrics.listen":        "",
}

// Manager handles testfleet configuration
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a new configuration manager. An empty configPath
// searches the working directory, then the home directory.
func NewManager(configPath string) *Manager {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Manager{
		configPath: configPath,
		viper:      v,
		config:     &Config{},
	}
}

// BindFlag makes a command-line flag override the key when the flag is set
func (m *Manager) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for %s", key)
	}
	return m.viper.BindPFlag(key, flag)
}

// Load reads the configuration file, if any, and applies defaults
func (m *Manager) Load() (*Config, error) {
	path := m.configPath
	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		m.viper.SetConfigFile(path)
		if err := m.viper.ReadInConfig(); err != nil {
			// An explicitly requested file must exist
			if m.configPath != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	m.config = &Config{}
	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.applyDefaults()

	return m.config, nil
}

// Save writes the effective configuration as YAML. An empty path writes
// FileName in the working directory.
func (m *Manager) Save(path string) (string, error) {
	if path == "" {
		path = m.configPath
	}
	if path == "" {
		path = FileName
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	m.viper.SetConfigType("yaml")
	if err := m.viper.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// ConfigFileUsed returns the file the configuration was read from, if any
func (m *Manager) ConfigFileUsed() string {
	return m.viper.ConfigFileUsed()
}

// applyDefaults fills values that cannot be expressed as viper defaults
func (m *Manager) applyDefaults() {
	if m.config == nil {
		return
	}

	if m.config.Report.Format == "" {
		m.config.Report.Format = "table"
	}

	if m.config.Cores.Dir == "" {
		m.config.Cores.Dir = m.config.Report.Dir
	}

	if len(m.config.Discovery.Patterns) == 0 {
		m.config.Discovery.Patterns = []string{"*_test"}
	}
}

// Validate checks the configuration for values the run cannot work with
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Pool.Workers < 0 {
		problems = append(problems, "pool.workers must not be negative")
	}
	if cfg.Pool.AddedWorkers < 0 {
		problems = append(problems, "pool.addedWorkers must not be negative")
	}
	if cfg.Timeouts.Worker < 0 {
		problems = append(problems, "timeouts.worker must not be negative")
	}
	for key, d := range map[string]time.Duration{
		"timeouts.poll":      cfg.Timeouts.Poll,
		"timeouts.scan":      cfg.Timeouts.Scan,
		"timeouts.queuePoll": cfg.Timeouts.QueuePoll,
		"timeouts.stop":      cfg.Timeouts.Stop,
	} {
		if d <= 0 {
			problems = append(problems, key+" must be positive")
		}
	}
	if cfg.Valgrind.Repeat < 1 {
		problems = append(problems, "valgrind.repeat must be at least 1")
	}
	if cfg.Report.Dir == "" {
		problems = append(problems, "report.dir must be set")
	}
	switch cfg.Report.Format {
	case "table", "json", "yaml":
	default:
		problems = append(problems, fmt.Sprintf("report.format %q is not one of table, json, yaml", cfg.Report.Format))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// findConfigFile returns the first configuration file that exists
func findConfigFile() string {
	candidates := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, HomeFileName))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}
