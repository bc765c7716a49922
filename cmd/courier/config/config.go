// Package configcmder provides the config command for managing persistent
// courier configuration stored in the .courier/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent courier configuration.

Configuration is stored as config.toml in the .courier/ directory and provides
default values for command flags. CLI flags and COURIER_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  api.listen, api.body_limit, api.upload_rate, api.upload_burst,
  picture.max_bytes, picture.max_pixels, picture.lock_timeout,
  search.page_size, search.max_page_size,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  courier config set <key> <value>    Set a configuration value
  courier config get <key>            Get a configuration value
  courier config list                 List all configuration values

Examples:
  courier config set storage.driver postgres
  courier config set eventstream.brokers kafka-1:9092,kafka-2:9092
  courier config get api.listen
  courier config list`

const configShortDesc string = "Manage persistent courier configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
