package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/bazaar-commerce/console/cmd/accessctl/cli"
	"github.com/bazaar-commerce/console/internal/app"
	"github.com/bazaar-commerce/console/internal/auth"
	"github.com/bazaar-commerce/console/internal/platform/db"
	"github.com/bazaar-commerce/console/internal/rolestore"
	"github.com/bazaar-commerce/console/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	var jsonOut bool

	root := &cobra.Command{
		Use:           "accessctl",
		Short:         "Provision and inspect console role records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON output")

	var bootstrap cli.BootstrapOptions
	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first super admin and its login account",
		RunE: func(cmd *cobra.Command, args []string) error {
			access, cleanup, err := openAccessCLI(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			exitCode = access.BootstrapCommand(ctx, bootstrap)
			return nil
		},
	}
	bootstrapCmd.Flags().StringVar(&bootstrap.ID, "id", "", "role record id")
	bootstrapCmd.Flags().StringVar(&bootstrap.Email, "email", "", "super admin email")
	bootstrapCmd.Flags().StringVar(&bootstrap.Password, "password", os.Getenv("BOOTSTRAP_PASSWORD"), "login password (env BOOTSTRAP_PASSWORD)")

	var show cli.ShowOptions
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the role record of an email",
		RunE: func(cmd *cobra.Command, args []string) error {
			access, cleanup, err := openAccessCLI(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			show.JSONOutput = jsonOut
			exitCode = access.ShowCommand(ctx, show)
			return nil
		},
	}
	showCmd.Flags().StringVar(&show.Email, "email", "", "email to look up")

	var pages cli.PagesOptions
	pagesCmd := &cobra.Command{
		Use:   "pages",
		Short: "List the page catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			pages.JSONOutput = jsonOut
			exitCode = cli.PagesCommand(pages)
			return nil
		},
	}
	pagesCmd.Flags().BoolVar(&pages.Seller, "seller", false, "list seller portal pages")

	var archived int
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the security event queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			inspector := asynq.NewInspector(cfg.Redis().Asynq())
			defer func() { _ = inspector.Close() }()
			exitCode = cli.NewJobsCLI(inspector).QueueCommand(os.Stdout, os.Stderr, archived)
			return nil
		},
	}
	queueCmd.Flags().IntVar(&archived, "archived", 0, "also list up to N archived events")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			pool, err := db.New(ctx, cfg.Database("accessctl"))
			if err != nil {
				return err
			}
			defer pool.Close()
			migrator := db.NewMigrator(migrations.PostgresFS, migrations.PostgresDir)
			run := func(ctx context.Context) (*db.MigrationResult, error) { return migrator.Run(ctx, pool) }
			exitCode = cli.MigrateCommand(ctx, run, os.Stdout, os.Stderr)
			return nil
		},
	}

	root.AddCommand(bootstrapCmd, showCmd, pagesCmd, queueCmd, migrateCmd)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func openAccessCLI(ctx context.Context) (*cli.AccessCLI, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg, "accessctl")
	pool, err := db.New(ctx, cfg.Database("accessctl"))
	if err != nil {
		return nil, nil, err
	}
	roles := rolestore.NewService(rolestore.NewRepository(pool), logger)
	accounts := auth.NewService(auth.NewRepository(pool))
	return cli.NewAccessCLI(roles, accounts), pool.Close, nil
}
