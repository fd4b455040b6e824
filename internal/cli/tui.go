package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"personaltasks/internal/prefs"
	"personaltasks/internal/tui"
	"personaltasks/internal/viewmodel"
)

func newTUICommand(a *app) *cobra.Command {
	var user, token string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the task list in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := a.localUser(user, token)
			if err != nil {
				return err
			}
			return a.runTUI(cmd.Context(), userID)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user namespace (default from config local_user)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token identifying the user")
	return cmd
}

func (a *app) runTUI(ctx context.Context, userID string) error {
	logger, closeLog, err := a.fileLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	be, err := a.openBackend(logger)
	if err != nil {
		return err
	}
	defer be.close()

	logger.Info("opening task list", slog.String("user", userID))
	vm := viewmodel.New(be.forUser(userID), prefs.Open(a.cfg.PrefsPath, prefs.Namespace), logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := vm.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, vm)
	})
	return g.Wait()
}
