package cmd

import (
	"os"
	"strconv"

	"github.com/emrgen/wikinote/internal/model"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "user commands",
}

func init() {
	userCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	userCmd.AddCommand(registerUserCmd())
	userCmd.AddCommand(approveUserCmd())
	userCmd.AddCommand(listUserCmd())
}

func registerUserCmd() *cobra.Command {
	var name string
	var email string

	var required = []string{"name", "email"}

	command := &cobra.Command{
		Use:   "register",
		Short: "register a user, an admin approves them before they can edit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Users.Register(requestContext(), name, email)
			if err != nil {
				return err
			}

			printUsers([]*model.User{user})
			return nil
		},
	}

	command.Flags().StringVarP(&name, "name", "n", "", "display name (required)")
	command.Flags().StringVarP(&email, "email", "e", "", "email address (required)")

	return command
}

func approveUserCmd() *cobra.Command {
	var id uint64

	var required = []string{"id"}

	command := &cobra.Command{
		Use:   "approve",
		Short: "approve a user, needs --admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Users.Approve(requestContext(), id)
			if err != nil {
				return err
			}

			printUsers([]*model.User{user})
			return nil
		},
	}

	command.Flags().Uint64Var(&id, "id", 0, "user id (required)")

	return command
}

func listUserCmd() *cobra.Command {
	var pending bool

	command := &cobra.Command{
		Use:   "list",
		Short: "list users, needs --admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.Users.List(requestContext(), !pending)
			if err != nil {
				return err
			}

			printUsers(users)
			return nil
		},
	}

	command.Flags().BoolVar(&pending, "pending", false, "list users waiting for approval")

	return command
}

func printUsers(users []*model.User) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Email", "Admin", "Approved"})
	for _, u := range users {
		table.Append([]string{
			strconv.FormatUint(u.ID, 10),
			u.Name,
			u.Email,
			strconv.FormatBool(u.Admin),
			strconv.FormatBool(u.Approved()),
		})
	}
	table.Render()
}
