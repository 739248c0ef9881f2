package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/docsync"
	lcsource "github.com/aretw0/docsync/pkg/adapters/lifecycle"
	"github.com/aretw0/docsync/pkg/engine"
)

var (
	watchState  bool
	watchEvents bool
)

// watchCmd keeps documents open and reports external changes until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Watch documents for external changes",
	Long: `Open the given documents and log every reload caused by another program
until interrupted. With --state, the engine state is printed as YAML on exit.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := openEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize docsync: %w", err)
		}

		for _, path := range args {
			_, err := eng.Open(ctx, path,
				docsync.OnReload(func(ev docsync.ReloadEvent) {
					slog.Info("reloaded", "path", ev.Path, "bytes", len(ev.Content))
				}),
				docsync.OnSaveError(func(err error) {
					slog.Error("save failed", "error", err)
				}),
			)
			if err != nil {
				_ = eng.Close(context.Background())
				return fmt.Errorf("failed to open document: %w", err)
			}
		}
		slog.Info("watching", "root", eng.Root(), "documents", len(args))

		if watchEvents {
			traceChanges(ctx, eng)
		}

		<-ctx.Done()

		if watchState {
			out, err := yaml.Marshal(eng.State())
			if err != nil {
				return fmt.Errorf("failed to encode state: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
		}

		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return eng.Close(closeCtx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchState, "state", false, "Print the engine state on exit")
	watchCmd.Flags().BoolVar(&watchEvents, "events", false, "Log every change notification of the watched folders")
}

// traceChanges subscribes once more to each watched folder and logs the raw
// notifications, including those the engine ignores.
func traceChanges(ctx context.Context, eng *docsync.Engine) {
	notifier := eng.Notifier()
	if notifier == nil {
		slog.Warn("change notifications are disabled")
		return
	}

	for _, reg := range eng.Registry().Registrations() {
		events, err := notifier.Watch(ctx, "trace-"+engine.WatchID(reg.Folder), reg.Folder)
		if err != nil {
			slog.Warn("trace failed", "folder", reg.Folder, "error", err)
			continue
		}

		src := lcsource.NewSource(events)
		if err := src.Start(ctx); err != nil {
			slog.Warn("trace failed", "folder", reg.Folder, "error", err)
			continue
		}
		lifecycle.Go(ctx, func(ctx context.Context) error {
			for ev := range src.Events() {
				slog.Info("change", "event", ev)
			}
			return nil
		})
	}
}
