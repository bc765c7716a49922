// Package couriercmder assembles the courier command tree.
package couriercmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/courier/cmd/courier/config"
	ingestcmder "github.com/papercomputeco/courier/cmd/courier/ingest"
	initcmder "github.com/papercomputeco/courier/cmd/courier/init"
	servecmder "github.com/papercomputeco/courier/cmd/courier/serve"
	versioncmder "github.com/papercomputeco/courier/cmd/courier/version"
	"github.com/papercomputeco/courier/pkg/utils"
)

const courierLongDesc string = `Courier is a picture messenger backend.

Users register, open pair dialogues and send each other pictures. Pictures
are stored once per distinct content no matter how they were encoded.

Get started with:
  courier init         Create a local .courier/ directory and config
  courier serve        Run the API server
  courier ingest       Store local images in the picture store
  courier config       Inspect and change persistent settings`

const courierShortDesc string = "Courier - picture messenger backend"

func NewCourierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "courier",
		Short:        courierShortDesc,
		Long:         courierLongDesc,
		Version:      utils.VersionString(),
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .courier/ directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
