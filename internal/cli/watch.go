package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"kanban-cli/internal/model"
	"kanban-cli/internal/reconcile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd(app *App) *cobra.Command {
	var count int
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch <board-id>...",
		Short: "Print the latest board version whenever a newer one is adopted",
		Long: `Print the board whenever a newer version is adopted, one document per print, until interrupted.

Versions are printed in increasing order per board; stale or foreign updates are never printed.
Versions adopted back to back may be coalesced: only the latest of them is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mu sync.Mutex
			emit := func(b model.Board) error {
				mu.Lock()
				defer mu.Unlock()
				return writeOut(cmd, app, map[string]any{"data": b})
			}

			var opts []reconcile.Option
			if metricsAddr != "" {
				stop, m, err := serveEngineMetrics(metricsAddr)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer stop()
				opts = append(opts, reconcile.WithMetrics(m))
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			for _, id := range args {
				g.Go(func() error {
					return watchBoard(ctx, app, id, count, emit, opts...)
				})
			}
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Exit after printing this many versions per board (0: run until interrupted)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve engine metrics on this address (e.g. 127.0.0.1:9090)")
	return cmd
}

// serveEngineMetrics exposes a fresh registry of engine metrics at /metrics. The
// engines of every watched board share it.
func serveEngineMetrics(addr string) (func(), *reconcile.Metrics, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	reg := prometheus.NewRegistry()
	m := reconcile.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", ln.Addr().String()).Info("serving engine metrics")
	return func() { _ = srv.Close() }, m, nil
}

func watchBoard(ctx context.Context, app *App, boardID string, count int, emit func(model.Board) error, opts ...reconcile.Option) error {
	e, err := openBoard(ctx, app, boardID, opts...)
	if err != nil {
		return err
	}
	defer e.Close()

	states, cancel := e.Subscribe()
	defer cancel()

	last := model.UnversionedBoard
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			if !st.Loaded() || st.Board.Version <= last {
				continue
			}
			last = st.Board.Version
			if err := emit(st.Board); err != nil {
				return err
			}
			seen++
			if count > 0 && seen >= count {
				return nil
			}
		}
	}
}
