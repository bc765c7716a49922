// Package initcmder provides the init command for initializing a local
// .courier directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/courier/pkg/cliui"
	"github.com/papercomputeco/courier/pkg/config"
)

const (
	dirName    = ".courier"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .courier/ directory in the current working directory.

Creates a local .courier/ directory that takes precedence over the default
~/.courier/ directory, and writes a config.toml with default values. An
existing config.toml is left untouched unless --preset is given.

Presets:
  memory     In-memory storage, nothing persisted
  sqlite     SQLite database inside .courier/ (the default)
  postgres   PostgreSQL on localhost with Kafka events on localhost:9092

Examples:
  courier init
  courier init --preset postgres`

const initShortDesc string = "Initialize a local .courier/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Deployment preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(w io.Writer, preset string) error {
	cfg := config.NewDefaultConfig()
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .courier directory: %w", err)
	}

	_, err = os.Stat(filepath.Join(dir, configFile))
	switch {
	case err == nil && preset == "":
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Initialized %s\n", cliui.SuccessMark, cliui.IDStyle.Render(dir))
	if preset != "" {
		fmt.Fprintf(w, "  preset %s\n", cliui.ValueStyle.Render(preset))
	}
	return nil
}
