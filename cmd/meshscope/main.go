// Meshscope discovers the topology of a low-power wireless mesh.
//
// It queries every reachable node over CoAP for its routing neighbors,
// assembles the answers into a graph and serves that graph over HTTP,
// Server-Sent Events and WebSocket.
//
// Usage:
//
//	meshscope [command] [flags]
//
// See 'meshscope --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshscope/internal/config"
	"meshscope/internal/logging"
	"meshscope/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath  string
	coordinator string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "meshscope",
	Short: "Mesh network topology discovery",
	Long: `Discover the topology of a 6LoWPAN/RPL mesh by asking every reachable
node for its devscan resource and assembling the answers into a graph.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: search "+config.EnvConfigPath+", ./"+config.ConfigFileName+", user config dir, /etc/meshscope)")
	rootCmd.PersistentFlags().StringVar(&coordinator, "coordinator", "", "Coordinator address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "meshscope %s\n", version.Full())
	},
}

// loadConfig reads the config file and applies command line overrides
func loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	if coordinator != "" {
		cfg.Coordinator.Address = coordinator
		if err := cfg.Validate(); err != nil {
			return nil, path, err
		}
	}
	return cfg, path, nil
}

// initLogging starts the logger at the flag level, else MESHSCOPE_LOG_LEVEL,
// else the fallback level
func initLogging(fallback string) error {
	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = fallback
	}
	return logging.Initialize(level)
}
