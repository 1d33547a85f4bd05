package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	userFullname string
	userEmail    string
	userDeleteY  bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage server accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user; the password is read from the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readNewPassword()
		if err != nil {
			return err
		}

		return withServices(func(s *services) error {
			user, err := s.users.Add(cmd.Context(), args[0], password, userFullname, userEmail)
			if err != nil {
				return err
			}

			fmt.Printf("Added user %q (#%d)\n", user.Username, user.ID)

			return nil
		})
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(func(s *services) error {
			users, err := s.users.List(cmd.Context())
			if err != nil {
				return err
			}

			if len(users) == 0 {
				fmt.Println("No users found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

			_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tFULL NAME\tEMAIL\tACTIVE\tCREATED")
			_, _ = fmt.Fprintln(w, "--\t--------\t---------\t-----\t------\t-------")

			for _, u := range users {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					u.ID, u.Username, u.Fullname, u.Email, yesNo(u.Active), humanize.Time(u.CreatedAt))
			}

			return w.Flush()
		})
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change a user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readNewPassword()
		if err != nil {
			return err
		}

		return withServices(func(s *services) error {
			if err := s.users.SetPassword(cmd.Context(), args[0], password); err != nil {
				return err
			}

			fmt.Printf("Password updated for %q\n", args[0])

			return nil
		})
	},
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <username>",
	Aliases: []string{"rm"},
	Short:   "Delete a user and their permissions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !userDeleteY && !promptConfirm(fmt.Sprintf("Delete user %q? [y/N]: ", args[0])) {
			fmt.Println("Cancelled.")
			return nil
		}

		return withServices(func(s *services) error {
			if err := s.users.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Printf("Deleted user %q\n", args[0])

			return nil
		})
	},
}

// readPassword reads a password from the terminal without echoing
func readPassword(prompt string) (string, error) {
	_, _ = fmt.Fprint(os.Stderr, prompt)

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(os.Stderr)

		if err != nil {
			return "", err
		}

		return string(password), nil
	}

	// piped input
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}

	return "", fmt.Errorf("failed to read password")
}

func readNewPassword() (string, error) {
	password, err := readPassword("Password: ")
	if err != nil {
		return "", err
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return password, nil
	}

	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", errors.New("passwords do not match")
	}

	return password, nil
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userListCmd, userPasswdCmd, userDeleteCmd)

	userAddCmd.Flags().StringVar(&userFullname, "fullname", "", "Full name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	userDeleteCmd.Flags().BoolVarP(&userDeleteY, "yes", "y", false, "Skip confirmation prompt")
}
