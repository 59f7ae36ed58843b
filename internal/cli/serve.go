package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/morozRed/medkb/internal/server"
	"github.com/morozRed/medkb/internal/watch"
)

// RunServe serves the HTTP API and, unless disabled, reloads the knowledge
// base when its files change. Both stop on SIGINT or SIGTERM.
func RunServe(cmd *cobra.Command, args []string) error {
	addr, err := OptionalStringFlag(cmd, "addr")
	if err != nil {
		return err
	}
	noWatch, err := OptionalBoolFlag(cmd, "no-watch", false)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if addr != "" {
		rt.cfg.Server.Addr = addr
	}
	if rt.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(rt.cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	srv := server.New(rt.engine, rt.cfg.Server, rt.logger.Named("http"))
	g.Go(func() error {
		return srv.Run(ctx)
	})

	if rt.cfg.Watch && !noWatch {
		watcher, err := watch.New(rt.cfg.DataDir, rt.engine, rt.logger.Named("watch"))
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	rt.logger.Info("medkb serving",
		zap.String("addr", rt.cfg.Server.Addr),
		zap.String("data_dir", rt.cfg.DataDir),
		zap.String("evaluator", rt.engine.Backend()),
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
