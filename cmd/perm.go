package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/inovacc/gitcove/internal/core"
	"github.com/inovacc/gitcove/internal/model"
	"github.com/spf13/cobra"
)

var permReadOnly bool

var permCmd = &cobra.Command{
	Use:     "perm",
	Aliases: []string{"permission"},
	Short:   "Manage repository permissions",
	Long: `Record which users may access which repositories.

Permissions are stored for external tooling; the Git protocol endpoints do not
enforce them.`,
}

var permGrantCmd = &cobra.Command{
	Use:   "grant <username> <mapping>",
	Short: "Grant a user access to a repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(s *services) error {
			user, repo, err := resolvePair(cmd.Context(), s, args[0], args[1])
			if err != nil {
				return err
			}

			if _, err := s.permissions.Grant(cmd.Context(), user.ID, repo.ID, permReadOnly); err != nil {
				return err
			}

			fmt.Printf("Granted %s access on %q to %q\n", accessLabel(permReadOnly), repo.Mapping, user.Username)

			return nil
		})
	},
}

var permRevokeCmd = &cobra.Command{
	Use:   "revoke <username> <mapping>",
	Short: "Revoke a user's access to a repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(s *services) error {
			user, repo, err := resolvePair(cmd.Context(), s, args[0], args[1])
			if err != nil {
				return err
			}

			if err := s.permissions.Revoke(cmd.Context(), user.ID, repo.ID); err != nil {
				return err
			}

			fmt.Printf("Revoked access on %q from %q\n", repo.Mapping, user.Username)

			return nil
		})
	},
}

var permListCmd = &cobra.Command{
	Use:   "list [mapping]",
	Short: "List permissions, optionally for one repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		return withServices(func(s *services) error {
			repos, err := s.repos.List(ctx, false)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				repo, err := s.repos.GetByMapping(ctx, args[0])
				if err != nil {
					return err
				}

				if repo == nil {
					return &core.NotFoundError{Kind: "repository", Key: args[0]}
				}

				repos = []model.Repository{*repo}
			}

			users, err := s.users.List(ctx)
			if err != nil {
				return err
			}

			names := make(map[int64]string, len(users))
			for _, u := range users {
				names[u.ID] = u.Username
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

			_, _ = fmt.Fprintln(w, "REPOSITORY\tUSER\tACCESS")
			_, _ = fmt.Fprintln(w, "----------\t----\t------")

			for _, repo := range repos {
				perms, err := s.permissions.ListForRepository(ctx, repo.ID)
				if err != nil {
					return err
				}

				for _, p := range perms {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", repo.Mapping, names[p.UserID], accessLabel(p.ReadOnly))
				}
			}

			return w.Flush()
		})
	},
}

func resolvePair(ctx context.Context, s *services, username, mapping string) (*model.User, *model.Repository, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, nil, err
	}

	repo, err := s.repos.GetByMapping(ctx, mapping)
	if err != nil {
		return nil, nil, err
	}

	if repo == nil {
		return nil, nil, &core.NotFoundError{Kind: "repository", Key: mapping}
	}

	return user, repo, nil
}

func accessLabel(readOnly bool) string {
	if readOnly {
		return "read-only"
	}

	return "read-write"
}

func init() {
	rootCmd.AddCommand(permCmd)
	permCmd.AddCommand(permGrantCmd, permRevokeCmd, permListCmd)

	permGrantCmd.Flags().BoolVar(&permReadOnly, "read-only", false, "Grant read-only access")
}
