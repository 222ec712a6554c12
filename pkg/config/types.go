package config

import (
	"time"
)

// Config holds the settings of an analyze run
type Config struct {
	// Accumulator options
	MaxLag int `mapstructure:"max-lag"`

	// Parsing options
	Column      int  `mapstructure:"column"`
	SkipInvalid bool `mapstructure:"skip-invalid"`

	// Output options
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`

	// Processing options
	Workers     int           `mapstructure:"workers"`
	TaskTimeout time.Duration `mapstructure:"task-timeout"`

	// Source options
	Backend     string   `mapstructure:"backend"`
	Bucket      string   `mapstructure:"bucket"`
	Directory   string   `mapstructure:"directory"`
	AWSRegion   string   `mapstructure:"aws-region"`
	AWSProfile  string   `mapstructure:"aws-profile"`
	AWSEndpoint string   `mapstructure:"aws-endpoint"`
	Extensions  []string `mapstructure:"extensions"`
	Limit       int      `mapstructure:"limit"`

	// Logging options
	Verbose bool   `mapstructure:"verbose"`
	LogFile string `mapstructure:"log-file"`
}
