package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email string
	var password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Example: `  # Prompt for the password
  catalog-admin login --email admin@example.com

  # Read the password from a pipe
  echo "$CATALOG_PASSWORD" | catalog-admin login --email admin@example.com --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				prompt := "Password: "
				if passwordStdin {
					prompt = ""
				}
				secret, err := readSecret(cmd, prompt)
				if err != nil {
					return err
				}
				password = secret
			}

			if err := a.client.Session.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Long:  `Removes the stored token. The server is not contacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.client.Session.Logout()
			return nil
		},
	}
}

type statusReport struct {
	Status      string `json:"status" yaml:"status"`
	Identity    string `json:"identity,omitempty" yaml:"identity,omitempty"`
	APIURL      string `json:"api_url" yaml:"api_url"`
	Credentials string `json:"credentials" yaml:"credentials"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session state",
		Long: `Shows whether a session token is stored. The token is not checked
against the server; the next API call will reveal whether it is still valid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := statusReport{
				Status:      a.client.Session.Status().String(),
				Identity:    a.client.Session.Identity(),
				APIURL:      a.cfg.APIURL,
				Credentials: a.cfg.CredentialsPath,
			}
			return a.render(cmd.OutOrStdout(), report, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Status:\t%s\n", report.Status)
				if report.Identity != "" {
					fmt.Fprintf(tw, "Identity:\t%s\n", report.Identity)
				}
				fmt.Fprintf(tw, "API:\t%s\n", report.APIURL)
				fmt.Fprintf(tw, "Credentials:\t%s\n", report.Credentials)
			})
		},
	}
}
