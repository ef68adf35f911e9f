package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/heritage-dao/heritage/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the governance API server",
	Long:  `Start the governance HTTP API at localhost:8470 along with the expiry sweeper.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}

	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	d.Server.SetVersion(rootCmd.Version)
	return d.Serve(context.Background())
}
