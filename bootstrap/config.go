package bootstrap

import (
	"fmt"
	"os"

	"bidhouse/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the zap logger with colored console output. The
// returned atomic level starts at debug so nothing is lost before the config
// is loaded; ApplyLoggingConfig tightens it afterwards.
func InitLogger() (*zap.Logger, *zap.SugaredLogger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)

	// Create a colored console encoder config
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Colored levels
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // Readable timestamps
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder      // Short file paths

	// Create console encoder with colors
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	// Write to stdout
	core := zapcore.NewCore(
		consoleEncoder,
		zapcore.AddSync(os.Stdout),
		level,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), level, nil
}

// ApplyLoggingConfig reshapes the bootstrap logger to match the loaded
// configuration: the level is adjusted in place, and the JSON format swaps
// the console encoder out entirely.
func ApplyLoggingConfig(logger *zap.Logger, level zap.AtomicLevel, cfg config.LoggingConfig) (*zap.Logger, *zap.SugaredLogger) {
	level.SetLevel(parseLogLevel(cfg.Level))

	if cfg.Format == "json" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		jsonCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core {
			return jsonCore
		}))
	}

	return logger, logger.Sugar()
}

// parseLogLevel maps the configured level string to its zap level. Unknown
// values were rejected at config validation; info is the safe default.
func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitConfig loads the application configuration.
func InitConfig(sugar *zap.SugaredLogger, configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfigFrom(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		sugar.Info("No config file found, using defaults and env vars")
	}

	// Log startup mode
	startupMode := cfg.StartupMode
	if startupMode == "" {
		startupMode = config.StartupModeStrict
	}
	sugar.Infow("Startup mode",
		"mode", string(startupMode),
		"description", func() string {
			if startupMode == config.StartupModeGraceful {
				return "will continue with degraded functionality on non-critical errors"
			}
			return "will fail fast on any initialization error"
		}())

	// Log data paths for visibility
	sugar.Infow("Data paths configuration",
		"data_dir", cfg.GetDataDir(),
		"sqlite_path", cfg.GetSQLitePath())

	sugar.Infow("Config loaded",
		"environment", cfg.Environment,
		"storage_backend", cfg.Storage.Backend,
		"chain_rpc_configured", cfg.Chain.RPCURL != "",
		"clickhouse_enabled", cfg.Storage.ClickHouse.Enabled,
		"redis_enabled", cfg.Redis.Enabled)

	for _, warning := range cfg.ProductionWarnings() {
		sugar.Warnw("Production configuration warning", "warning", warning)
	}

	return cfg, nil
}

// DataDirectoriesFromConfig creates DataDirectories from configuration.
func DataDirectoriesFromConfig(cfg *config.Config) DataDirectories {
	return DataDirectories{
		Base:   cfg.GetDataDir(),
		SQLite: cfg.GetSQLitePath(),
	}
}
