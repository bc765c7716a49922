// Package ingestcmder provides the ingest command, which stores local image
// files in the picture store the server uses.
package ingestcmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/courier/cmd/courier/backend"
	"github.com/papercomputeco/courier/pkg/cliui"
	"github.com/papercomputeco/courier/pkg/config"
	"github.com/papercomputeco/courier/pkg/logger"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/utils"
)

type ingestCommander struct {
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	maxPixels     uint

	configDir string
	debug     bool
	viper     *viper.Viper
	out       io.Writer
}

const ingestLongDesc string = `Store local image files in the courier picture store.

Each file is decoded, re-encoded to canonical PNG and deduplicated by
content. The picture id is printed with a mark: ✓ for a newly stored
picture, = for one that was already present.

Examples:
  courier ingest cat.png dog.jpg
  courier ingest --sqlite ./courier.sqlite photos/*.gif`

const ingestShortDesc string = "Store local images in the picture store"

// maxNameLen bounds file names in step output.
const maxNameLen = 48

var ingestFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagMaxPixels,
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, ingestFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd, args)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxPixels, &cmder.maxPixels)

	return cmd
}

func (c *ingestCommander) run(cmd *cobra.Command, paths []string) error {
	log := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
		logger.WithComponent("ingest"),
	)

	cfg := config.FromViper(c.viper)
	b, err := backend.Open(cmd.Context(), cfg, c.configDir, log)
	if err != nil {
		return err
	}
	defer b.Close()

	var failed int
	for _, path := range paths {
		var (
			rec     *picture.Record
			created bool
		)

		err := cliui.Step(c.out, "storing "+utils.Truncate(filepath.Base(path), maxNameLen), func() error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rec, created, err = b.Pictures.Put(cmd.Context(), raw)
			return err
		})
		if err != nil {
			failed++
			fmt.Fprintf(c.out, "    %s\n", cliui.StepStyle.Render(err.Error()))
			continue
		}

		fmt.Fprintf(c.out, "    %s %s %s\n",
			cliui.StoredMark(created),
			cliui.IDStyle.Render(rec.ID),
			cliui.DimStyle.Render(cliui.FormatBytes(rec.Size)),
		)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be stored", failed, len(paths))
	}
	return nil
}
