package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/m3rciful/newsmarket/core/buildinfo"
	corecmd "github.com/m3rciful/newsmarket/core/cmd"
	coredatabase "github.com/m3rciful/newsmarket/core/database"
	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/m3rciful/newsmarket/internal/ai"
	"github.com/m3rciful/newsmarket/internal/app"
	"github.com/m3rciful/newsmarket/internal/config"
)

func newRunCmd(configPath *string) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        *configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: "config.yaml",
				LoadConfig:        app.LoadConfig,
				Bootstrap:         app.Bootstrap(app.Options{SkipMigrations: skipMigrations}),
			})
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on start")
	return cmd
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := corecmd.ResolveConfigPath(*configPath, configEnvVar, "config.yaml")
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			if err := coredatabase.RunMigrations(cfg.Database); err != nil {
				return err
			}
			v, dirty, err := coredatabase.MigrationVersion(cfg.Database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}
}

func newPromptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List the AI prompt catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := ai.DefaultCatalog()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCOPE\tKEY\tTITLE")
			for _, scope := range []ai.Scope{ai.ScopeNews, ai.ScopeMarket, ai.ScopeGeneral} {
				for _, p := range catalog.List(scope) {
					fmt.Fprintf(w, "%s\t%s\t%s\n", scope, p.Key, p.Title)
				}
			}
			return w.Flush()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
