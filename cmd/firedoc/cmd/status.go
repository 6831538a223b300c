package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/firedoc/pkg/core/health"
	"github.com/msto63/firedoc/pkg/core/version"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check transport, credential and endpoint health",
	Long: `Connects to the configured endpoint, obtains a credential and reports
the state of each. Against an emulator the gRPC health service is queried
as well.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("firedoc Status")
	fmt.Println("==============")
	fmt.Println()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	registry := health.NewRegistry("firedoc", version.Client)
	registry.Register(health.TCPCheck("endpoint", appConfig.Firestore.Endpoint, appConfig.Firestore.ConnectTimeout.Duration))

	s, err := openSession(ctx)
	if err != nil {
		fmt.Printf("  [-] %-12s - %v\n", "session", err)
	} else {
		defer s.Close()
		registry.Register(health.ChannelCheck("channel", s.channel))
		registry.Register(health.CredentialCheck("credential", func(ctx context.Context) (time.Time, error) {
			cred, err := s.source.Credential(ctx)
			if err != nil {
				return time.Time{}, err
			}
			return cred.ExpiresAt, nil
		}, appConfig.Auth.RefreshMargin.Duration))
		if appConfig.Firestore.Insecure {
			registry.Register(health.GRPCCheck("emulator", s.channel, "", 5*time.Second))
		}
	}

	identity := "unknown"
	if s != nil {
		identity = s.identity()
	}

	report := registry.Check(ctx)
	for _, c := range report.Checks {
		icon := "[+]"
		switch c.Status {
		case health.StatusDegraded:
			icon = "[~]"
		case health.StatusUnhealthy, health.StatusUnknown:
			icon = "[-]"
		}
		fmt.Printf("  %s %-12s - %s (%v)\n", icon, c.Name, c.Message, c.Duration.Round(time.Millisecond))
	}

	fmt.Println()
	fmt.Printf("Endpoint: %s\n", appConfig.Firestore.Endpoint)
	fmt.Printf("Parent:   %s\n", appConfig.Parent())
	fmt.Printf("Identity: %s\n", identity)
	fmt.Printf("Overall:  %s\n", report.Status)

	if err != nil {
		return err
	}
	if report.Status == health.StatusUnhealthy {
		return fmt.Errorf("unhealthy")
	}
	return nil
}
