package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/runsheets/internal/api"
	"github.com/jackzampolin/runsheets/internal/relay"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Manage a local SMTP relay for trying out dispatch",
	Long: `Manage a local Mailpit container that accepts mail on SMTP and shows it
in a web UI instead of delivering it. Point the mail section of the config
at it to run the whole pipeline without a real mail provider:

  mail:
    host: localhost
    port: 1025
    from: dispatch@example.com
    username: relay
    password: relay
    tls: none

Examples:
  runsheets relay start     # Start the relay container
  runsheets relay status    # Show status and captured message count
  runsheets relay messages  # List captured messages
  runsheets relay stop      # Stop the container`,
}

var relayStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relay container",
	Long: `Start the relay container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getRelayManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting relay...")
		if err := mgr.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start relay: %w", err)
		}

		fmt.Printf("SMTP: %s:%s\n", mgr.SMTPHost(), mgr.SMTPPort())
		fmt.Printf("UI:   %s\n", mgr.UIURL())
		return nil
	},
}

var relayStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the relay container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getRelayManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping relay...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop relay: %w", err)
		}

		fmt.Println("Relay stopped")
		return nil
	},
}

var relayRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the relay container and its captured messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getRelayManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove relay: %w", err)
		}

		fmt.Println("Relay container removed")
		return nil
	},
}

var relayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay container status and captured message count",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getRelayManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		info, err := mgr.Describe(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		return api.Output(info)
	},
}

var relayLogsTail string

var relayLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show relay container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getRelayManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(cmd.Context(), relayLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var relayMessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List messages captured by the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getRelayManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		list, err := mgr.Inbox().Messages(cmd.Context())
		if err != nil {
			return err
		}
		return api.Output(list)
	},
}

var relayClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all messages captured by the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getRelayManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.Inbox().Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Relay inbox cleared")
		return nil
	},
}

var relayWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the relay to be ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		mgr, err := getRelayManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.WaitReady(cmd.Context(), timeout); err != nil {
			return fmt.Errorf("relay not ready: %w", err)
		}

		fmt.Println("Relay is ready")
		return nil
	},
}

func init() {
	relayCmd.AddCommand(relayStartCmd)
	relayCmd.AddCommand(relayStopCmd)
	relayCmd.AddCommand(relayRemoveCmd)
	relayCmd.AddCommand(relayStatusCmd)
	relayCmd.AddCommand(relayLogsCmd)
	relayCmd.AddCommand(relayMessagesCmd)
	relayCmd.AddCommand(relayClearCmd)
	relayCmd.AddCommand(relayWaitCmd)

	relayLogsCmd.Flags().StringVar(&relayLogsTail, "tail", "100", "Number of lines to show from the end")
	relayWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for the relay")

	rootCmd.AddCommand(relayCmd)
}

// getRelayManager creates a relay manager from the relay config section.
func getRelayManager() (*relay.Manager, error) {
	cfgMgr, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rc := cfgMgr.Get().Relay
	return relay.New(relay.Config{
		ContainerName: rc.ContainerName,
		Image:         rc.Image,
		SMTPPort:      rc.SMTPPort,
		UIPort:        rc.UIPort,
	})
}
