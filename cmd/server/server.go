package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/errwrap"
	"github.com/spf13/cobra"

	"github.com/HaKr/token-server/internal/config"
	"github.com/HaKr/token-server/internal/durationflag"
	"github.com/HaKr/token-server/internal/httpapi"
	"github.com/HaKr/token-server/internal/purge"
	"github.com/HaKr/token-server/internal/token"
	"github.com/HaKr/token-server/listener"
	apilistener "github.com/HaKr/token-server/listener/api"
	log "github.com/HaKr/token-server/logger"
)

const subsystemListener = "listener"

var (
	flagPort            int
	flagTokenLifetime   = durationflag.NewValue(config.TokenLifetimeRange)
	flagPurgeInterval   = durationflag.NewValue(config.PurgeIntervalRange)
	flagDumpEnabled     bool
	flagShutdownEnabled bool
	flagLogLevel        string
	flagLogFormat       string
	flagLogFile         string

	ServerCmd = &cobra.Command{
		Use:   "server",
		Short: "Starts a token server that responds to API requests",
		Long: `
Usage: token-server server [options]

  This command starts a token server that accepts create/rotate/remove
  requests over HTTP. Every flag has a workable default; the server can
  be started with no flags at all.
`,
		RunE: run,
	}

	wg sync.WaitGroup

	cleanupGuard sync.Once
)

func init() {
	ServerCmd.Flags().IntVar(&flagPort, "port", config.DefaultPort, "TCP port to listen on")
	ServerCmd.Flags().Var(flagTokenLifetime, "token-lifetime", "lifetime applied to every created or rotated token ("+config.TokenLifetimeRange.String()+")")
	ServerCmd.Flags().Var(flagPurgeInterval, "purge-interval", "how often the background sweep evicts expired tokens ("+config.PurgeIntervalRange.String()+")")
	ServerCmd.Flags().BoolVar(&flagDumpEnabled, "dump-enabled", false, "enable the administrative HEAD /dump endpoint")
	ServerCmd.Flags().BoolVar(&flagShutdownEnabled, "shutdown-enabled", false, "enable the administrative GET /shutdown endpoint")
	ServerCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	ServerCmd.Flags().StringVar(&flagLogFormat, "log-format", "default", "log format: default or json")
	ServerCmd.Flags().StringVar(&flagLogFile, "log-file", "", "path to a log file; logs go to stdout only when empty")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Config{
		Port:            flagPort,
		TokenLifetime:   flagTokenLifetime.Duration(),
		PurgeInterval:   flagPurgeInterval.Duration(),
		DumpEnabled:     flagDumpEnabled,
		ShutdownEnabled: flagShutdownEnabled,
		LogLevel:        flagLogLevel,
		LogFormat:       flagLogFormat,
		LogFile:         flagLogFile,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := buildGatedLogger(cfg)

	store := token.New(cfg.TokenLifetime, logger.WithSystem("store"))
	scheduler := purge.New(store, cfg.PurgeInterval, logger.WithSystem("purge"))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	handler := httpapi.Handler(&httpapi.Properties{
		Store:           store,
		Log:             logger.WithSystem("http"),
		DumpEnabled:     cfg.DumpEnabled,
		ShutdownEnabled: cfg.ShutdownEnabled,
		Shutdown:        cancel,
	})

	ln, err := apilistener.NewApiListener(apilistener.ApiListenerConfig{
		Logger:  logger.WithSystem(subsystemListener),
		Address: fmt.Sprintf(":%d", cfg.Port),
	}, handler)
	if err != nil {
		return errwrap.Wrapf("error initializing listener: {{err}}", err)
	}
	lns := []listener.Listener{ln}

	infoKeys := make([]string, 0, 8)
	info := make(map[string]string)
	addInfo := func(k, v string) {
		info[k] = v
		infoKeys = append(infoKeys, k)
	}
	addInfo("port", fmt.Sprintf("%d", cfg.Port))
	addInfo("token lifetime", durationflag.Format(cfg.TokenLifetime))
	addInfo("purge interval", durationflag.Format(cfg.PurgeInterval))
	addInfo("dump enabled", fmt.Sprintf("%t", cfg.DumpEnabled))
	addInfo("shutdown enabled", fmt.Sprintf("%t", cfg.ShutdownEnabled))
	addInfo("log level", cfg.LogLevel)
	addInfo("log format", cfg.LogFormat)

	envVars := os.Environ()
	var envVarKeys []string
	for _, v := range envVars {
		envVarKeys = append(envVarKeys, strings.SplitN(v, "=", 2)[0])
	}
	sort.Strings(envVarKeys)
	addInfo("environment variables", strings.Join(envVarKeys, ", "))

	listenerCloseFunc := func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Stopping all listeners\n")
		for _, l := range lns {
			if err := l.Stop(); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "failed to stop %s listener at %s: %v\n", l.Type(), l.Addr(), err)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Listener stopped successfully: type=%s, address=%s\n", l.Type(), l.Addr())
			}
		}
	}
	defer cleanupGuard.Do(listenerCloseFunc)

	sort.Strings(infoKeys)
	fmt.Fprintf(cmd.OutOrStdout(), "\n==> token server configuration:\n\n")
	for _, k := range infoKeys {
		fmt.Fprintf(cmd.OutOrStdout(), "%24s: %s\n", k, info[k])
	}

	wg.Go(func() { scheduler.Run(ctx) })

	errChan := make(chan error, len(lns))
	for _, l := range lns {
		wg.Go(func() {
			if err := l.Start(ctx); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "failed to start listener: %v\n", err)
				errChan <- err
			}
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n==> token server started! Log data will stream in below:\n")
	logger.OpenGate()

	select {
	case err := <-errChan:
		fmt.Fprintf(cmd.OutOrStdout(), "listener error occurred: %v\n", err)
		cancel()
	case <-ctx.Done():
		fmt.Fprintf(cmd.OutOrStdout(), "shutdown triggered\n")
	}

	cleanupGuard.Do(listenerCloseFunc)
	wg.Wait()

	close(errChan)
	var listenerErrs []error
	for err := range errChan {
		listenerErrs = append(listenerErrs, err)
	}
	if len(listenerErrs) > 0 {
		aggregated := errors.Join(listenerErrs...)
		fmt.Fprintf(cmd.OutOrStdout(), "listener errors occurred during runtime: %v\n", aggregated)
		return aggregated
	}

	fmt.Fprintf(cmd.OutOrStdout(), "server shutdown completed successfully\n")
	return nil
}

func buildGatedLogger(cfg config.Config) *log.GatedLogger {
	outputs := []io.Writer{os.Stdout}

	logConfig := &log.Config{
		Level:   log.ParseLogLevel(cfg.LogLevel),
		Format:  log.ParseOutPutFormat(cfg.LogFormat),
		Outputs: outputs,
	}
	if cfg.LogFile != "" {
		logConfig.FileConfig = &log.FileConfig{
			Filename: cfg.LogFile,
		}
	}

	gateConfig := log.GatedWriterConfig{
		Underlying:    os.Stdout,
		InitialState:  log.GateClosed,
		MaxBufferSize: 1 * 1024 * 1024,
	}

	gatedLogger, _ := log.NewGatedLogger(logConfig, gateConfig)
	return gatedLogger
}
