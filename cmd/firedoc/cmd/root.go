package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	"github.com/msto63/firedoc/pkg/core/config"
	"github.com/msto63/firedoc/pkg/core/logging"
)

var (
	cfgFile string
	verbose bool
	retries uint

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "firedoc",
	Short: "firedoc - authenticated document-store client",
	Long: `firedoc reads and writes documents in a Firestore-compatible document
store over gRPC, authenticating with a service-account key.

Commands:
  tasks    - list, read, create and complete task documents
  list     - list the documents of a collection
  get      - read a single document
  create   - create a document from JSON
  status   - check transport, credential and endpoint health
  emulate  - run a local document store emulator`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $FIREDOC_CONFIG or ./configs/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().UintVar(&retries, "retries", 3, "attempts for idempotent calls on UNAVAILABLE or DEADLINE_EXCEEDED")
}

// loadConfig reads the config file if one exists and installs the root logger.
// Without any file the defaults apply.
func loadConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.Find()
	}

	var err error
	if path != "" {
		appConfig, err = config.Load(path)
		if err != nil {
			return err
		}
	} else {
		appConfig = config.Default()
	}

	lc := logging.FromConfig(appConfig.General)
	if verbose {
		lc.Level = "debug"
	}
	logging.SetRoot(logging.NewLogger(lc))
	return nil
}

func printError(err error) {
	if e, ok := fderror.As(err); ok {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", e.Code(), err)
		for k, v := range e.Details() {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", k, v)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
