package cli

import (
	"strings"

	"kanban-cli/internal/authority"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var dbPath string
	var redisAddr string
	var noSeed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local board authority (REST + websocket push)",
		Long: strings.TrimSpace(`
Run the reference board authority: boards persist in a sqlite file, every accepted PUT
gets the next version and is pushed to websocket watchers.

Several instances can share watchers through redis (--redis).
`),
		Example: strings.TrimSpace(`
kanban serve --addr 127.0.0.1:8080
kanban serve --db /tmp/boards.sqlite --redis localhost:6379
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg.Serve
			if s := strings.TrimSpace(addr); s != "" {
				cfg.Addr = s
			}
			if s := strings.TrimSpace(dbPath); s != "" {
				cfg.DB = s
			}
			if s := strings.TrimSpace(redisAddr); s != "" {
				cfg.RedisAddr = s
			}
			ctx := cmd.Context()

			store, err := authority.Open(ctx, cfg.DB)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer store.Close()

			if cfg.Seed && !noSeed {
				seeded, err := store.Seed(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				if seeded {
					log.WithField("db", cfg.DB).Info("seeded sample boards")
				}
			}

			hub := authority.NewHub()
			if cfg.RedisAddr != "" {
				rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
				defer rc.Close()
				hub.AttachRelay(rc)
				log.WithField("redis", cfg.RedisAddr).Info("fan-out through redis")
			}

			if err := authority.NewServer(store, hub).Run(ctx, cfg.Addr); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config: :8080)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (default from config: ~/.kanban/authority.sqlite)")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address for multi-instance fan-out")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Do not create sample boards in an empty database")
	return cmd
}
