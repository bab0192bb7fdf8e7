package main

import (
	"os"

	"github.com/spf13/cobra"

	"mediachat/internal/app"
)

var (
	joinServerURL string
	joinUsername  string
)

func init() {
	joinCmd.Flags().StringVar(&joinServerURL, "server", envOr("MEDIACHAT_SERVER", "http://localhost:5000"), "server base URL")
	joinCmd.Flags().StringVar(&joinUsername, "name", envOr("MEDIACHAT_NAME", defaultUsername()), "display name")
	rootCmd.AddCommand(joinCmd)
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join the chat from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RunClient(app.ClientConfig{
			ServerURL: joinServerURL,
			Username:  joinUsername,
		})
	},
}

func defaultUsername() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "anon"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
