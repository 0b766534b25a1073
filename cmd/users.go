package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage user accounts",
	}

	cmd.AddCommand(newUsersListCmd(a))
	cmd.AddCommand(newUsersCreateCmd(a))
	cmd.AddCommand(newUsersUpdateCmd(a))
	cmd.AddCommand(newUsersDeleteCmd(a))

	return cmd
}

func newUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.client.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), users, userTable(users))
		},
	}
}

func newUsersCreateCmd(a *app) *cobra.Command {
	var draft models.UserDraft
	var name string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a user account",
		Example: `  catalog-admin users create --email clerk@example.com --name "Store Clerk" --password secret1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("name") {
				draft.Name = models.Ptr(name)
			}
			u, err := a.client.Users.Create(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s)\n", u.ID, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&draft.Email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&draft.Password, "password", "", "Initial password, at least 6 characters (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUsersUpdateCmd(a *app) *cobra.Command {
	var email, name, password string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a user's email, name or password",
		Long:  `Only the flags you pass are sent. Without --password the password stays as it is.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var patch models.UserPatch
			if cmd.Flags().Changed("email") {
				patch.Email = models.Ptr(email)
			}
			if cmd.Flags().Changed("name") {
				patch.Name = models.Ptr(name)
			}
			if cmd.Flags().Changed("password") {
				patch.Password = models.Ptr(password)
			}

			u, err := a.client.Users.Update(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated user %d (%s)\n", u.ID, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&password, "password", "", "New password")

	return cmd
}

func newUsersDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete user %d?", id))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			if err := a.client.Users.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
