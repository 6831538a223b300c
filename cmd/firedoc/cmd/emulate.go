package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/firedoc/internal/emulator"
	"github.com/msto63/firedoc/pkg/core/logging"
)

var (
	emulatorHost  string
	emulatorPort  int
	emulatorStore string
	emulatorPath  string
	emulatorAuth  bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a local document store emulator",
	Long: `Serves the List, Get, Create and Update document RPCs on a plaintext
gRPC listener. Point the client at it with

  FIRESTORE_EMULATOR_HOST=127.0.0.1:8681 firedoc tasks list

The memory store is lost on exit; the sqlite store persists to --path.`,
	RunE: runEmulate,
}

func init() {
	emulateCmd.Flags().StringVar(&emulatorHost, "host", "", "listen host (default from config)")
	emulateCmd.Flags().IntVar(&emulatorPort, "port", 0, "listen port (default from config)")
	emulateCmd.Flags().StringVar(&emulatorStore, "store", "", "store backend: memory or sqlite")
	emulateCmd.Flags().StringVar(&emulatorPath, "path", "", "sqlite database file")
	emulateCmd.Flags().BoolVar(&emulatorAuth, "require-auth", false, "reject calls without a bearer token")
	rootCmd.AddCommand(emulateCmd)
}

func runEmulate(cmd *cobra.Command, args []string) error {
	log := logging.New("emulator")

	cfg := appConfig.Emulator
	if emulatorHost != "" {
		cfg.Host = emulatorHost
	}
	if emulatorPort != 0 {
		cfg.Port = emulatorPort
	}
	if emulatorStore != "" {
		cfg.Store = emulatorStore
	}
	if emulatorPath != "" {
		cfg.Path = emulatorPath
	}
	if cmd.Flags().Changed("require-auth") {
		cfg.RequireAuth = emulatorAuth
	}

	store, err := emulator.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}

	srv := emulator.NewGRPCServer(cfg, emulator.New(store))
	if err := srv.StartAsync(); err != nil {
		return err
	}
	log.Info("emulator started", "address", srv.Address(), "store", cfg.Store,
		"documents", count, "require_auth", cfg.RequireAuth)
	fmt.Printf("Emulator listening on %s (store: %s, %d documents)\n", srv.Address(), cfg.Store, count)
	fmt.Println("Press Ctrl+C to stop")

	<-cmd.Context().Done()
	log.Info("shutdown signal received, stopping emulator")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.StopWithTimeout(ctx)

	if count, err = store.Count(ctx); err == nil {
		log.Info("emulator stopped", "documents", count)
	} else {
		log.Info("emulator stopped")
	}
	return nil
}
