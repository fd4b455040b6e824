package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"personaltasks/internal/models"
	"personaltasks/internal/tasks"
)

func newListCommand(a *app) *cobra.Command {
	var user, token, status, sortOrder, query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the tasks with one status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := models.ParseStatus(status)
			if err != nil {
				return err
			}
			var moreImportantFirst bool
			switch sortOrder {
			case "important":
				moreImportantFirst = true
			case "light":
			default:
				return fmt.Errorf("unknown sort %q (want important or light)", sortOrder)
			}

			userID, err := a.localUser(user, token)
			if err != nil {
				return err
			}

			logger := a.newLogger(cmd.ErrOrStderr())
			be, err := a.openBackend(logger)
			if err != nil {
				return err
			}
			defer be.close()

			list, err := be.forUser(userID).ListByStatus(cmd.Context(), st, moreImportantFirst)
			if err != nil {
				return err
			}
			return printTasks(cmd.OutOrStdout(), tasks.Filter(list, query))
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user namespace (default from config local_user)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token identifying the user")
	cmd.Flags().StringVar(&status, "status", string(models.StatusActive), "ACTIVE, COMPLETED or DELETED")
	cmd.Flags().StringVar(&sortOrder, "sort", "important", "important or light")
	cmd.Flags().StringVarP(&query, "query", "q", "", "only tasks whose title or description contains this text")
	return cmd
}

func printTasks(w io.Writer, list []models.Task) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tIMPORTANCE\tTITLE")
	for _, t := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.DueDate.Display(), t.Importance, t.Title)
	}
	return tw.Flush()
}
