package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/souqlab/souq/config"
	"github.com/souqlab/souq/internal/app"
	"github.com/souqlab/souq/internal/shopapi"
	"github.com/souqlab/souq/internal/webserver"
)

var (
	Version   = "dev"
	BuildTime = ""

	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "souq",
		Short:   "souq marketplace backend",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(initdbCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook endpoint and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configFile)
			if err := cfg.Validate(); err != nil {
				return err
			}
			application := app.NewApplication(cfg)
			if err := application.Init(cfg); err != nil {
				return err
			}
			defer application.Release()

			shopapi.Init()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return webserver.NewWebServer(application).Start(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApp()
			if err != nil {
				return err
			}
			defer application.Release()
			if err := application.MigrateDB(trace); err != nil {
				return err
			}
			zap.S().Info("database migration finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "log every migration statement")
	return cmd
}

func initdbCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "initdb",
		Short: "Drop all tables and recreate them with default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("initdb deletes all data, rerun with --force")
			}
			application, err := openApp()
			if err != nil {
				return err
			}
			defer application.Release()
			application.InitDb()
			zap.S().Info("database initialized")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm dropping existing data")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("souq %s %s\n", Version, BuildTime)
		},
	}
}

func openApp() (*app.Application, error) {
	cfg := config.LoadConfig(configFile)
	application := app.NewApplication(cfg)
	if err := application.OpenDatabase(cfg); err != nil {
		return nil, err
	}
	return application, nil
}
