package config

import "time"

// Config represents the testfleet configuration file structure
type Config struct {
	// Pool sizes the worker pool and its one-time growth
	Pool PoolConfig `mapstructure:"pool" yaml:"pool" json:"pool"`

	// Timeouts holds every scheduler timing knob
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`

	// Valgrind controls how binaries are wrapped
	Valgrind ValgrindConfig `mapstructure:"valgrind" yaml:"valgrind" json:"valgrind"`

	// Discovery selects the binaries to run
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery" json:"discovery"`

	// Report controls where side files go and how results are printed
	Report ReportConfig `mapstructure:"report" yaml:"report" json:"report"`

	// Cores controls snapshots of hung binaries
	Cores CoresConfig `mapstructure:"cores" yaml:"cores" json:"cores"`

	// Metrics exposes a Prometheus endpoint during the run
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// PoolConfig sizes the worker pool
type PoolConfig struct {
	// Workers is the initial pool size; 0 means one per CPU
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`

	// AddedWorkers is how many workers the scaler adds; 0 disables it
	AddedWorkers int `mapstructure:"addedWorkers" yaml:"addedWorkers" json:"addedWorkers"`

	// ScaleAfter is the run time after which workers are added
	ScaleAfter time.Duration `mapstructure:"scaleAfter" yaml:"scaleAfter" json:"scaleAfter"`
}

// TimeoutsConfig holds scheduler timings
type TimeoutsConfig struct {
	// Worker is how long a binary may run; 0 disables the limit
	Worker time.Duration `mapstructure:"worker" yaml:"worker" json:"worker"`

	// Poll is the completion poll interval
	Poll time.Duration `mapstructure:"poll" yaml:"poll" json:"poll"`

	// Scan is the timeout supervisor cadence
	Scan time.Duration `mapstructure:"scan" yaml:"scan" json:"scan"`

	// QueuePoll bounds an idle worker's wait for work
	QueuePoll time.Duration `mapstructure:"queuePoll" yaml:"queuePoll" json:"queuePoll"`

	// Stop bounds the wait for workers at shutdown
	Stop time.Duration `mapstructure:"stop" yaml:"stop" json:"stop"`
}

// ValgrindConfig controls the memcheck wrapper
type ValgrindConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Path of the valgrind executable
	Path string `mapstructure:"path" yaml:"path" json:"path"`

	// Repeat is passed to the binary as --gtest_repeat
	Repeat int `mapstructure:"repeat" yaml:"repeat" json:"repeat"`

	// Suppressions is a suppressions file, used when it exists
	Suppressions string `mapstructure:"suppressions" yaml:"suppressions" json:"suppressions"`

	// ExtraArgs are appended to the valgrind options
	ExtraArgs string `mapstructure:"extraArgs" yaml:"extraArgs,omitempty" json:"extraArgs,omitempty"`

	// Options replace the default valgrind options when set
	Options []string `mapstructure:"options" yaml:"options,omitempty" json:"options,omitempty"`

	// IgnoreFrames lists thread frames whose memory errors are ignored
	IgnoreFrames []string `mapstructure:"ignoreFrames" yaml:"ignoreFrames" json:"ignoreFrames"`
}

// DiscoveryConfig selects test binaries
type DiscoveryConfig struct {
	// Dir is searched for binaries and used as their working directory
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`

	// Patterns are doublestar globs relative to Dir
	Patterns []string `mapstructure:"patterns" yaml:"patterns" json:"patterns"`
}

// ReportConfig controls report files and printing
type ReportConfig struct {
	// Dir receives the <binary>.report and <binary>.out files
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`

	// Format is the output format (table, json, yaml)
	Format string `mapstructure:"format" yaml:"format" json:"format"`

	// NoColor disables colored output
	NoColor bool `mapstructure:"noColor" yaml:"noColor" json:"noColor"`

	// Wide adds status, detail and report columns to the table
	Wide bool `mapstructure:"wide" yaml:"wide" json:"wide"`
}

// CoresConfig controls core snapshots
type CoresConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Dir receives core files; the report dir when empty
	Dir string `mapstructure:"dir" yaml:"dir,omitempty" json:"dir,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Listen is the address to serve on; empty disables the endpoint
	Listen string `mapstructure:"listen" yaml:"listen,omitempty" json:"listen,omitempty"`
}
