package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"teamsync/api/internal/config"
)

var (
	cfg = config.Load()

	remoteURL      string
	syncToken      string
	replicaBackend string
	replicaPath    string
	redisURL       string
	logLevel       string

	viewAs      string
	metricsAddr string
	markAll     bool

	rootCmd = &cobra.Command{
		Use:   "workspacectl",
		Short: "Keep a local team workspace replica in sync with the central copy",
		Long: `workspacectl owns this machine's replica of the shared team workspace.
It reconciles the replica with the central copy, applies local changes and
shows the workspace as a given user is allowed to see it.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Sync continuously until interrupted",
		RunE:  runSync,
	}
	viewCmd = &cobra.Command{
		Use:   "view",
		Short: "Print the workspace as seen by the signed-in user or --as",
		Args:  cobra.NoArgs,
		RunE:  runView,
	}
	loginCmd = &cobra.Command{
		Use:   "login [user-id]",
		Short: "Sign in as a user from the org chart",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Sign out and reset session state",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
	notificationsCmd = &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"n"},
		Short:   "List notifications visible to the signed-in user or --as",
		Args:    cobra.NoArgs,
		RunE:    runNotifications,
	}
	markReadCmd = &cobra.Command{
		Use:   "mark-read [notification-id]",
		Short: "Mark one notification, or all with --all, as read",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMarkRead,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&remoteURL, "remote", cfg.RemoteURL, "Base URL of the central workspace API")
	flags.StringVar(&syncToken, "token", cfg.SyncToken, "Shared sync token sent to the central API")
	flags.StringVar(&replicaBackend, "replica", cfg.ReplicaBackend, "Local replica backend: file or redis")
	flags.StringVar(&replicaPath, "replica-path", cfg.ReplicaPath, "Replica file for the file backend")
	flags.StringVar(&redisURL, "redis-url", cfg.RedisURL, "Redis URL for the redis backend")
	flags.StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve sync metrics on this address (disabled when empty)")

	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().StringVar(&viewAs, "as", "", "Resolve the view for this user id instead of the signed-in user")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.Flags().StringVar(&viewAs, "as", "", "List notifications visible to this user id")

	rootCmd.AddCommand(markReadCmd)
	markReadCmd.Flags().BoolVar(&markAll, "all", false, "Mark every notification as read")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
