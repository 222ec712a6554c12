package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"streamstats-go/pkg/stats"
	"streamstats-go/pkg/utils"
)

// Default values
const (
	DefaultMaxLag      = stats.DefaultMaxLag
	DefaultWorkers     = 4
	DefaultTaskTimeout = 10 * time.Minute
	DefaultFormat      = "json"
	DefaultBackend     = "local"
	DefaultAWSRegion   = "us-east-1"
)

var (
	validFormats  = []string{"json", "markdown"}
	validBackends = []string{"local", "aws", "http"}
)

// SetDefaults sets default values for the configuration
func SetDefaults() {
	viper.SetDefault("max-lag", DefaultMaxLag)
	viper.SetDefault("column", 0)
	viper.SetDefault("skip-invalid", false)

	viper.SetDefault("format", DefaultFormat)
	viper.SetDefault("output", "")

	viper.SetDefault("workers", DefaultWorkers)
	viper.SetDefault("task-timeout", DefaultTaskTimeout)

	viper.SetDefault("backend", DefaultBackend)
	viper.SetDefault("bucket", "")
	viper.SetDefault("directory", "")
	viper.SetDefault("aws-region", DefaultAWSRegion)
	viper.SetDefault("extensions", []string{})
	viper.SetDefault("limit", 0)

	viper.SetDefault("log-file", "")
}

// LoadConfig loads configuration from defaults, an optional config file,
// STREAMSTATS_* environment variables and bound flags.
func LoadConfig() (*Config, error) {
	SetDefaults()

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("streamstats")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.streamstats")
		viper.AddConfigPath("/etc/streamstats/")
	}

	viper.SetEnvPrefix("STREAMSTATS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is okay, we'll use defaults and CLI flags
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(&config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	return &config, nil
}

// postProcessConfig normalizes and validates the configuration
func postProcessConfig(config *Config) error {
	// Lag depth below one is clamped, not rejected
	if config.MaxLag < 1 {
		config.MaxLag = 1
	}

	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.TaskTimeout < 0 {
		config.TaskTimeout = DefaultTaskTimeout
	}

	config.Format = strings.ToLower(strings.TrimSpace(config.Format))
	if err := utils.ValidateOneOf(config.Format, validFormats, "format"); err != nil {
		return err
	}

	config.Backend = strings.ToLower(strings.TrimSpace(config.Backend))
	if err := utils.ValidateOneOf(config.Backend, validBackends, "backend"); err != nil {
		return err
	}
	if config.Backend == "aws" {
		if err := utils.ValidateNonEmpty(config.Bucket, "bucket"); err != nil {
			return err
		}
	}

	if err := utils.ValidateNonNegativeInt(config.Column, "column"); err != nil {
		return err
	}
	if err := utils.ValidateNonNegativeInt(config.Limit, "limit"); err != nil {
		return err
	}

	config.Extensions = utils.NormalizeExtensions(config.Extensions)

	return nil
}

// SetupLogging configures a zap logger. Logs go to stderr so that reports
// written to stdout stay machine readable; logFile adds a second sink.
func SetupLogging(verbose bool, logFile string) (*zap.Logger, error) {
	var config zap.Config

	if verbose {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.MessageKey = "message"

	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	if logFile != "" {
		config.OutputPaths = append(config.OutputPaths, logFile)
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, logFile)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Debug("Logging initialized",
		zap.String("level", config.Level.String()),
		zap.String("log_file", logFile),
	)

	return logger, nil
}
