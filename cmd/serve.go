package cmd

import (
	"context"
	"os/signal"

	"github.com/emrgen/wikinote/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
}

func serveCmd() *cobra.Command {
	var noWorker bool

	command := &cobra.Command{
		Use:   "serve",
		Short: "serve the http api and run the task worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Migrate(); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.NewServer(a, cfg.App.Domain, cfg.HTTP.CorsOrigins).Serve(ctx, cfg.HTTP.Address())
			})
			if !noWorker {
				g.Go(func() error {
					return a.RunWorker(ctx)
				})
			}

			err = g.Wait()
			logrus.Info("server stopped")
			return err
		},
	}

	command.Flags().BoolVar(&noWorker, "no-worker", false, "do not run queued tasks in this process")

	return command
}

func workerCmd() *cobra.Command {
	var once bool

	command := &cobra.Command{
		Use:   "worker",
		Short: "run queued tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			if once {
				return a.Worker.Drain(ctx)
			}

			return a.RunWorker(ctx)
		},
	}

	command.Flags().BoolVar(&once, "once", false, "run the due tasks and exit")

	return command
}
