package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your own account",
	}
	cmd.AddCommand(newProfileUpdateCmd(a))
	return cmd
}

func newProfileUpdateCmd(a *app) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your email or display name",
		Long: `Changes your own email or display name. Changing the email ends the
session; log in again with the new address afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.ProfilePatch
			if cmd.Flags().Changed("email") {
				patch.Email = models.Ptr(email)
			}
			if cmd.Flags().Changed("name") {
				patch.Name = models.Ptr(name)
			}

			result, err := a.client.Profile.Update(cmd.Context(), patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile updated (%s)\n", result.User.Email)
			if result.ReauthRequired {
				fmt.Fprintf(cmd.OutOrStdout(), "Your email changed. Log in again with: catalog-admin login --email %s\n", result.User.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringVar(&name, "name", "", "New display name")

	return cmd
}

func newPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage your password",
	}
	cmd.AddCommand(newPasswordChangeCmd(a))
	return cmd
}

func newPasswordChangeCmd(a *app) *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "change",
		Short: "Change your password",
		Long: `Changes your password. The session ends on success; log in again
with the new password.`,
		Example: `  catalog-admin password change --current admin123 --new s3cret-pass`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Profile.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "Current password (required)")
	cmd.Flags().StringVar(&next, "new", "", "New password, at least 6 characters (required)")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("new")

	return cmd
}
