package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/internal/logging"
	intOtel "github.com/sabers-go/sabers/internal/otel"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "sabers"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	gelfWriter *gelf.Writer

	SessionStartTime time.Time = time.Now()
)

func main() {
	err := newRootCmd().Execute()
	shutdown()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:     AppName,
		Short:   "Normalize Beat Saber maps and replays",
		Version: fmt.Sprintf("%s (built %s)", CurrentVersion, BuildDate),
		Long: `sabers reads Beat Saber difficulty documents in any supported dialect
and converts them into one version-independent model.

Maps can be inspected one at a time or ingested in bulk into a storage
backend, with per-difficulty statistics written to InfluxDB.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(configDir)
		},
	}

	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing "+config.FileName)
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("logLevel", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newMapCmd(),
		newReplayCmd(),
		newProbeCmd(),
		newIngestCmd(),
		newWatchCmd(),
	)
	return root
}

// setup loads configuration and initializes logging, OTel and the GELF sink.
func setup(configDir string) error {
	if err := config.Load(configDir); err != nil {
		// defaults are registered even when no file is found
		Logger.Debug("Failed to load config, using defaults", "error", err)
	}

	var logOutput io.Writer
	if logsDir := viper.GetString("logsDir"); logsDir != "" {
		f, err := logging.OpenLogFile(logsDir, AppName, SessionStartTime)
		if err != nil {
			return err
		}
		LogFilePath = f.Name()
		LogFile = f
		logOutput = f
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var err error
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logOutput,
			MetricWriter:   logOutput,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OTel provider: %w", err)
		}
	}

	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		w, err := logging.NewGELFWriter(graylogCfg.Address, AppName)
		if err != nil {
			return err
		}
		gelfWriter = w
		SlogManager.SetGELF(w)
	}

	SlogManager.Setup(logOutput, viper.GetString("logLevel"), otelLogProvider())
	Logger = SlogManager.Logger()
	Logger.Info("Starting", "version", CurrentVersion, "build", BuildDate, "logFile", LogFilePath)
	return nil
}

func otelLogProvider() *sdklog.LoggerProvider {
	if OTelProvider == nil {
		return nil
	}
	return OTelProvider.LoggerProvider()
}

// logWriter returns the open log file, or nil for console output.
func logWriter() io.Writer {
	if LogFile == nil {
		return nil
	}
	return LogFile
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush logs", "error", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
		OTelProvider = nil
	}
	if gelfWriter != nil {
		_ = gelfWriter.Close()
		gelfWriter = nil
		SlogManager.SetGELF(nil)
	}
	SlogManager.SetAttrSource(nil)
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}
