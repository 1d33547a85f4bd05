package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/inovacc/gitcove/internal/cli"
	"github.com/inovacc/gitcove/internal/model"
	"github.com/spf13/cobra"
)

var (
	repoDescription string
	repoListAll     bool
	repoActivateOff bool
	repoUpdateName  string
	repoUpdateDesc  string
	repoDeleteYes   bool
)

var repoCmd = &cobra.Command{
	Use:     "repo",
	Aliases: []string{"repository"},
	Short:   "Manage served repositories",
}

var repoCreateCmd = &cobra.Command{
	Use:   "create <name> <mapping>",
	Short: "Create a bare repository seeded with an initial commit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(s *services) error {
			repo, err := s.repos.Create(cmd.Context(), args[0], args[1], repoDescription)
			if err != nil {
				return err
			}

			fmt.Printf("Created repository %q (#%d) at %s\n", repo.Name, repo.ID, s.repos.PathFor(repo.Mapping))

			return nil
		})
	},
}

var repoImportCmd = &cobra.Command{
	Use:   "import <folder>",
	Short: "Register an existing repository folder below the root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(s *services) error {
			repo, err := s.repos.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if repo == nil {
				fmt.Printf("Nothing imported: %s is already registered or holds no Git data\n", args[0])
				return nil
			}

			fmt.Printf("Imported %q (#%d)\n", repo.Mapping, repo.ID)

			return nil
		})
	},
}

var repoScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Import every unregistered repository folder below the root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(func(s *services) error {
			count, err := s.repos.ScanAndImport(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Imported %d repositories from %s\n", count, s.repos.Root())

			return nil
		})
	},
}

var repoListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List repositories",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(func(s *services) error {
			repos, err := s.repos.List(cmd.Context(), !repoListAll)
			if err != nil {
				return err
			}

			if len(repos) == 0 {
				fmt.Println("No repositories found.")
				return nil
			}

			printRepositories(repos)

			return nil
		})
	},
}

var repoArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a repository; Git requests are then refused",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		return withServices(func(s *services) error {
			repo, err := s.repos.Archive(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Printf("Archived %q\n", repo.Mapping)

			return nil
		})
	},
}

var repoActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Activate or deactivate a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		return withServices(func(s *services) error {
			repo, err := s.repos.Activate(cmd.Context(), id, !repoActivateOff)
			if err != nil {
				return err
			}

			fmt.Printf("Repository %q active: %s\n", repo.Mapping, yesNo(repo.Active))

			return nil
		})
	},
}

var repoUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit the name or description of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		var update model.RepositoryUpdate

		if cmd.Flags().Changed("name") {
			update.Name = &repoUpdateName
		}

		if cmd.Flags().Changed("description") {
			update.Description = &repoUpdateDesc
		}

		if update.Name == nil && update.Description == nil {
			return fmt.Errorf("nothing to update: pass --name or --description")
		}

		return withServices(func(s *services) error {
			repo, err := s.repos.Update(cmd.Context(), id, update)
			if err != nil {
				return err
			}

			fmt.Printf("Updated %q\n", repo.Mapping)

			return nil
		})
	},
}

var repoDeleteCmd = &cobra.Command{
	Use:     "delete [id]",
	Aliases: []string{"rm"},
	Short:   "Delete a repository and its files",
	Long: `Delete a repository: the bare directory is removed first, then the record.

Without an id, pick the repository from an interactive list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(s *services) error {
			var target *model.Repository

			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}

				target, err = s.repos.Get(cmd.Context(), id)
				if err != nil {
					return err
				}

				if target == nil {
					return fmt.Errorf("repository #%d not found", id)
				}
			} else {
				repos, err := s.repos.List(cmd.Context(), false)
				if err != nil {
					return err
				}

				target, err = cli.PickRepository("Delete which repository?", repos)
				if err != nil {
					return err
				}

				if target == nil {
					return nil
				}
			}

			if !repoDeleteYes && !promptConfirm(fmt.Sprintf("Delete %q and %s? [y/N]: ", target.Mapping, s.repos.PathFor(target.Mapping))) {
				fmt.Println("Cancelled.")
				return nil
			}

			if err := s.repos.Delete(cmd.Context(), target.ID); err != nil {
				return err
			}

			fmt.Printf("Deleted %q\n", target.Mapping)

			return nil
		})
	},
}

func printRepositories(repos []model.Repository) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ID\tNAME\tMAPPING\tACTIVE\tARCHIVED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t------\t--------\t-------")

	for _, r := range repos {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Mapping+model.RepoSuffix, yesNo(r.Active), yesNo(r.Archived), humanize.Time(r.CreatedAt))
	}

	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoCreateCmd, repoImportCmd, repoScanCmd, repoListCmd,
		repoArchiveCmd, repoActivateCmd, repoUpdateCmd, repoDeleteCmd)

	repoCreateCmd.Flags().StringVarP(&repoDescription, "description", "d", "", "Repository description")
	repoListCmd.Flags().BoolVar(&repoListAll, "all", false, "Include inactive repositories")
	repoActivateCmd.Flags().BoolVar(&repoActivateOff, "off", false, "Deactivate instead")
	repoUpdateCmd.Flags().StringVar(&repoUpdateName, "name", "", "New display name")
	repoUpdateCmd.Flags().StringVar(&repoUpdateDesc, "description", "", "New description")
	repoDeleteCmd.Flags().BoolVarP(&repoDeleteYes, "yes", "y", false, "Skip confirmation prompt")
}
