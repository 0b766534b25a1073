package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/catalog-admin/internal/catalog"
	"github.com/lehigh-university-libraries/catalog-admin/internal/config"
	"github.com/lehigh-university-libraries/catalog-admin/internal/session"
)

// app is shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	fs     afero.Fs
	cfg    config.Config
	client *catalog.Client

	apiURL          string
	assetURL        string
	credentialsPath string
	output          string
	verbose         bool
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(afero.NewOsFs())
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs}

	cmd := &cobra.Command{
		Use:   "catalog-admin",
		Short: "Administer a product catalog from the command line",
		Long: `catalog-admin signs in to a product catalog API and manages its products,
user accounts and your own profile.

The session token is kept between runs, so log in once and then run
any number of product or user commands.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "Catalog API base URL (env CATALOG_API_URL)")
	cmd.PersistentFlags().StringVar(&a.assetURL, "asset-url", "", "Base URL for product images (env CATALOG_ASSET_URL)")
	cmd.PersistentFlags().StringVar(&a.credentialsPath, "credentials", "", "Where the session token is stored (env CATALOG_CREDENTIALS)")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", formatTable, "Output format: table, yaml or json")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newProductsCmd(a))
	cmd.AddCommand(newUsersCmd(a))
	cmd.AddCommand(newProfileCmd(a))
	cmd.AddCommand(newPasswordCmd(a))
	cmd.AddCommand(newServeCmd())

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := validateFormat(a.output); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.assetURL != "" {
		cfg.AssetURL = a.assetURL
	}
	if a.credentialsPath != "" {
		cfg.CredentialsPath = a.credentialsPath
	}
	a.cfg = cfg

	a.client = catalog.NewClient(cfg, a.fs)
	a.client.Session.Subscribe(func(e session.Event) {
		if e.Navigate == session.RouteLogin {
			fmt.Fprintln(cmd.ErrOrStderr(), "Logged out. Run `catalog-admin login` to sign in again.")
		}
	})
	a.client.Session.Restore()

	slog.Debug("Configuration loaded", "api_url", cfg.APIURL, "asset_url", cfg.AssetURL, "credentials", cfg.CredentialsPath)
	return nil
}
