package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

const defaultTimeFormat = "15:04:05.000"

// GetLogger returns the global logger, creating a console-only fallback if
// InitLogger has not run yet (tests, early startup errors).
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleConfig(nil))
	}
	return globalLogger
}

// InitLogger builds the arbor logger from config and installs it as the
// global instance. Output targets come from config.Logging.Output; file
// output lands in logs/ next to the executable.
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logger := arbor.NewLogger()

	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			fileCfg, err := fileConfig(config)
			if err != nil {
				fmt.Printf("Warning: file logging disabled: %v\n", err)
				continue
			}
			logger = logger.WithFileWriter(fileCfg)
		case "stdout", "console":
			logger = logger.WithConsoleWriter(consoleConfig(config))
		}
	}

	logger = logger.WithLevelFromString(config.Logging.Level)

	globalLogger = logger
	return logger
}

func consoleConfig(config *Config) models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       timeFormat(config),
		TextOutput:       textOutputFormat(config == nil || config.Logging.Format != "json"),
		DisableTimestamp: false,
	}
}

func textOutputFormat(text bool) models.TextOutputFormat {
	if text {
		return models.TextOutputFormatLogfmt
	}
	return models.TextOutputFormatJSON
}

func fileConfig(config *Config) (models.WriterConfiguration, error) {
	execPath, err := os.Executable()
	if err != nil {
		return models.WriterConfiguration{}, fmt.Errorf("cannot resolve executable path: %w", err)
	}
	logsDir := filepath.Join(filepath.Dir(execPath), "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return models.WriterConfiguration{}, fmt.Errorf("cannot create logs directory: %w", err)
	}

	return models.WriterConfiguration{
		Type:             models.LogWriterTypeFile,
		FileName:         filepath.Join(logsDir, "auspex.log"),
		TimeFormat:       timeFormat(config),
		MaxSize:          100 * 1024 * 1024,
		MaxBackups:       3,
		TextOutput:       textOutputFormat(config.Logging.Format != "json"),
		DisableTimestamp: false,
	}, nil
}

func timeFormat(config *Config) string {
	if config != nil && config.Logging.TimeFormat != "" {
		return config.Logging.TimeFormat
	}
	return defaultTimeFormat
}

// GetLogFilePath returns the active log file path, if file logging is on.
func GetLogFilePath(logger arbor.ILogger) string {
	if logger != nil {
		if logFilePath := logger.GetLogFilePath(); logFilePath != "" {
			return logFilePath
		}
	}
	return ""
}
