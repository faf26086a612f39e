// Package cli wires configuration, logging and the label store into cobra
// commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"preset-labels/api"
	"preset-labels/config"
	"preset-labels/label"
	"preset-labels/logging"
	"preset-labels/store/factory"
)

type openFunc func(ctx context.Context, cfg config.StoreConfig, log logging.Logger) (label.Store, io.Closer, error)

type app struct {
	configFile string
	openStore  openFunc
	cfg        *config.Config
	log        logging.Logger
	svc        *label.Service
	closer     io.Closer
}

// NewRootCommand builds the preset-labels command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{openStore: factory.New})
}

func newRootCommand(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:           "preset-labels",
		Short:         "Manage the preset label set",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "path to a config file (yaml, json or toml)")

	root.AddCommand(
		a.serveCommand(),
		a.getCommand(),
		a.addCommand(),
		a.removeCommand(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	st, closer, err := a.openStore(ctx, cfg.Store, a.log)
	if err != nil {
		return err
	}
	a.closer = closer
	a.svc = label.NewService(st, label.WithKey(cfg.Store.Key), label.WithLogger(a.log))
	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// withStore opens the configured store for the duration of run and closes it
// whether or not run fails. Commands without it (help, completion) never
// touch configuration.
func (a *app) withStore(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.open(cmd.Context()); err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(); cerr != nil && err == nil {
				err = fmt.Errorf("close store: %w", cerr)
			}
		}()
		return run(cmd, args)
	}
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the label API over HTTP",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string) error {
			srv := &http.Server{
				Addr:              a.cfg.HTTP.Addr,
				Handler:           api.RegisterRoutes(a.svc, a.log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("preset-labels listening", "addr", srv.Addr, "backend", a.cfg.Store.Backend)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)
			case <-cmd.Context().Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}),
	}
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the stored labels as JSON (null when none were ever stored)",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string) error {
			labels, err := a.svc.GetLabels(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(labels)
		}),
	}
}

func (a *app) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add LABEL...",
		Short: "Add labels to the set",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			return a.svc.AddLabels(cmd.Context(), args)
		}),
	}
}

func (a *app) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove LABEL",
		Short: "Remove a label from the set",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			return a.svc.RemoveLabel(cmd.Context(), args[0])
		}),
	}
}
