// Package servecmder provides the serve command that runs the courier API.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/courier/api"
	"github.com/papercomputeco/courier/cmd/courier/backend"
	"github.com/papercomputeco/courier/pkg/config"
	"github.com/papercomputeco/courier/pkg/logger"
)

type ServeCommander struct {
	flags      serveFlags
	debug      bool
	jsonLogs   bool
	logFile    string
	configDir  string
	viper      *viper.Viper
	logger     *slog.Logger
	registered []string
}

// serveFlags are the flag targets; viper resolves the effective values.
type serveFlags struct {
	listen         string
	storageDriver  string
	sqlitePath     string
	postgresDSN    string
	maxPixels      uint
	lockTimeout    string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string
	pageSize       uint
}

const serveLongDesc string = `Run the courier API server.

Settings are resolved from flags, then COURIER_* environment variables,
then config.toml in the .courier/ directory, then built-in defaults.

Examples:
  courier serve
  courier serve --listen :9000 --storage-driver memory
  courier serve --storage-driver postgres --postgres-dsn postgres://...
  courier serve --events-provider kafka --events-brokers localhost:9092`

const serveShortDesc string = "Run the courier API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{
		registered: []string{
			config.FlagListen,
			config.FlagStorageDriver,
			config.FlagSQLite,
			config.FlagPostgresDSN,
			config.FlagMaxPixels,
			config.FlagLockTimeout,
			config.FlagEventsProvider,
			config.FlagEventsBrokers,
			config.FlagEventsTopic,
			config.FlagPageSize,
		},
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, cmder.registered)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &f.postgresDSN)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxPixels, &f.maxPixels)
	config.AddStringFlag(cmd, config.Flags, config.FlagLockTimeout, &f.lockTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &f.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &f.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &f.eventsTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagPageSize, &f.pageSize)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "log-json", false, "Write JSON logs instead of human-readable output")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	closeLog, err := c.buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	cfg := config.FromViper(c.viper)

	b, err := backend.Open(cmd.Context(), cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			c.logger.Warn("closing backend", "error", err)
		}
	}()

	server, err := api.NewServer(NewAPIConfig(cfg, b), b.Driver, b.Pictures, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// buildLogger writes to stdout and, with --log-file, appends JSON records to
// the file as well.
func (c *ServeCommander) buildLogger() (func(), error) {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.jsonLogs),
		logger.WithPretty(!c.jsonLogs),
		logger.WithComponent("serve"),
	)
	if c.logFile == "" {
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(c.logger, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
		logger.WithComponent("serve"),
	))
	return func() { _ = f.Close() }, nil
}

// NewAPIConfig maps the resolved config onto the API server settings.
func NewAPIConfig(cfg *config.Config, b *backend.Backend) api.Config {
	return api.Config{
		ListenAddr:  cfg.API.Listen,
		BodyLimit:   int(cfg.API.BodyLimit),
		UploadRate:  cfg.API.UploadRate,
		UploadBurst: int(cfg.API.UploadBurst),
		PageSize:    int(cfg.Search.PageSize),
		MaxPageSize: int(cfg.Search.MaxPageSize),
		Events:      b.Events,
	}
}
