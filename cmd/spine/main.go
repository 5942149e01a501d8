package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spinekv/libspine"
	"spinekv/libspine/common/logger"
	"spinekv/libspine/engine"
	"spinekv/libspine/engine/commands"
)

var (
	serverConfig = &libspine.Config{}
	rootCmd      = &cobra.Command{
		Use:   "spine",
		Short: "Start the spine server",
		Long: fmt.Sprintf(`spine (v%s)

An in-memory data structure server speaking the Redis protocol. Every flag
can also be set through an environment variable named SPINE_<FLAG>, e.g.
SPINE_LOG_LEVEL=debug. Values are also read from .env and .env.local.`, commands.ServerVersion),
		SilenceUsage: true,
		PreRunE:      processConfig,
		RunE:         run,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of spine",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", commands.ServerName, commands.ServerVersion)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringSlice("listen", []string{"tcp://:6379"}, "Listen address (schema://host:port, e.g. tcp://:6379, ws://:8000, unix:///tmp/spine.sock). Can be repeated")
	flags.Int("databases", engine.DefaultDatabases, "Number of databases")
	flags.Int("max-clients", 0, "Maximum concurrent connections per listener, 0 for no limit")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads .env files and enables SPINE_ environment variables
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("spine")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// processConfig merges flags and environment into serverConfig
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := logger.Init(viper.GetString("log-level")); err != nil {
		return err
	}

	serverConfig.ListenConfigs = nil
	for _, addr := range viper.GetStringSlice("listen") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		lc, err := libspine.ParseListenAddress(addr)
		if err != nil {
			return err
		}
		serverConfig.ListenConfigs = append(serverConfig.ListenConfigs, lc)
	}

	serverConfig.Databases = viper.GetInt("databases")
	if serverConfig.Databases <= 0 {
		return fmt.Errorf("databases must be positive, got %d", serverConfig.Databases)
	}
	serverConfig.MaxClients = viper.GetInt("max-clients")
	if serverConfig.MaxClients < 0 {
		return fmt.Errorf("max-clients cannot be negative, got %d", serverConfig.MaxClients)
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	server, err := libspine.NewServer(serverConfig)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	for _, addr := range server.Addrs() {
		fmt.Printf("listening on %s://%s\n", addr.Network(), addr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("shutting down")
	return server.Stop()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
