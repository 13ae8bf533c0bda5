package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // Set by build

// rootOptions holds the persistent flags
type rootOptions struct {
	configPath string
	baseURL    string
	logLevel   string
	storeType  string
}

// NewRootCommand builds the fundi command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "fundi",
		Short: "fundi - command line client for the Fundi marketplace API",
		Long: `fundi talks to the Fundi marketplace API from the terminal.

It keeps the login session in a credential store (file, LevelDB or Redis),
sends the bearer token with every request and drops the session as soon as
the server stops accepting it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (defaults to $FUNDI_CONFIG)")
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "Override api.base_url")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.storeType, "store", "", "Override store.type (memory, file, leveldb, redis)")

	root.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newSessionCommand(opts),
		newCategoriesCommand(opts),
		newJobsCommand(opts),
		newNotificationsCommand(opts),
		newWatchCommand(opts),
		newSmokeCommand(opts),
		newFakeServerCommand(),
	)

	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
