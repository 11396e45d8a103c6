// Command fruitbot runs the "which fruit are you" Telegram quiz.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/fruitbot/core/buildinfo"
	corecmd "github.com/m3rciful/fruitbot/core/cmd"
	coreconfig "github.com/m3rciful/fruitbot/core/config"
	coredatabase "github.com/m3rciful/fruitbot/core/database"
	"github.com/m3rciful/fruitbot/internal/bot"
	"github.com/m3rciful/fruitbot/internal/profile"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fruitbot",
		Short:         "Telegram quiz that tells users which fruit they are",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH or "+defaultConfigPath+")")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(runOptions(configPath))
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := coreconfig.LoadDotEnv(); err != nil {
				return err
			}
			path := corecmd.ResolveConfigPath(corecmd.Options{ConfigPath: configPath, DefaultConfigPath: defaultConfigPath})
			dbCfg, err := bot.LoadDatabaseConfig(path)
			if err != nil {
				return err
			}
			return coredatabase.RunMigrations(dbCfg, profile.Migrations, profile.MigrationsDir)
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fruitbot", buildinfo.String())
		},
	}

	root.AddCommand(serve, migrate, version)
	root.RunE = serve.RunE
	return root
}

func runOptions(configPath string) corecmd.Options {
	return corecmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			botCfg, ok := cfg.(*bot.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			app, err := bot.NewApp(ctx, botCfg)
			if err != nil {
				return nil, err
			}
			return app, nil
		},
	}
}
