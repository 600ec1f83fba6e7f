package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/store"
)

var (
	userName string
	userRole string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage assignable users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun(cmd.Context())
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun(cmd.Context())
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a user who can be assigned issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun(cmd.Context(), args[0])
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userRole, "role", string(models.UserRolePM), "Role: pm, admin, developer")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

func userListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.Info("No users yet; add one with: triage user add <email>")
		return nil
	}

	table := ui.Table([]string{"ID", "Email", "Name", "Role"})
	for _, u := range users {
		table.Append([]string{shortID(u.ID), u.Email, u.Name, string(u.Role)})
	}
	return table.Render()
}

func userAddRun(ctx context.Context, email string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add user %s", email)
		return nil
	}

	user := &models.User{
		Email: email,
		Name:  userName,
		Role:  models.UserRole(userRole),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return err
	}

	ui.Success("User %s added (%s)", user.Email, shortID(user.ID))
	return nil
}

// findUser resolves an assignee by exact email, then by case-insensitive
// display name.
func findUser(ctx context.Context, s store.Store, ref string) (*models.User, error) {
	if user, err := s.GetUserByEmail(ctx, ref); err == nil {
		return user, nil
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(ref)
	var matches []*models.User
	for _, u := range users {
		if strings.ToLower(u.Name) == lower {
			matches = append(matches, u)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("unknown user %s: add one with 'triage user add'", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous user %s: matches %d users", ref, len(matches))
	}
}
