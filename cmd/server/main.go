package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/editgrid/internal/config"
	"github.com/JonMunkholm/editgrid/internal/logging"
	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/store/memstore"
	"github.com/JonMunkholm/editgrid/internal/store/pgstore"
	"github.com/JonMunkholm/editgrid/internal/store/xlsxstore"
	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Table.Backend,
		"definitions", cfg.Table.Definitions,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"realtime_enabled", cfg.Realtime.Enabled,
	)

	keys, err := schema.RegisterFile(cfg.Table.Definitions)
	if err != nil {
		slog.Error("failed to load table definitions", "error", err)
		os.Exit(1)
	}
	slog.Info("tables registered", "count", len(keys), "keys", keys)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hub *web.Hub
	if cfg.Realtime.Enabled {
		hub = web.NewHub(web.HubConfig{
			SendBuffer:   cfg.Realtime.SendBuffer,
			PongWait:     cfg.Realtime.PongWait,
			PingInterval: cfg.Realtime.PingInterval,
		})
		go hub.Run(ctx)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		slog.Error("failed to open backend", "backend", cfg.Table.Backend, "error", err)
		os.Exit(1)
	}
	defer b.close()

	tables := web.NewTables()
	for _, def := range schema.All() {
		t, err := b.open(ctx, def, hub)
		if err != nil {
			slog.Error("failed to open table", "table", def.Key, "error", err)
			os.Exit(1)
		}
		if err := tables.Add(t); err != nil {
			slog.Error("failed to add table", "table", def.Key, "error", err)
			os.Exit(1)
		}
		slog.Debug("table ready", "table", def.Key, "group", def.Group, "rows", len(t.Controller().Rows()))
	}
	defer tables.Close()

	server := web.NewServer(cfg, tables, hub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Disconnect change feeds first; they never finish on their own.
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		return
	}
	slog.Info("server stopped")
}

// backend opens tables against one data source.
type backend struct {
	open    func(ctx context.Context, def schema.Definition, hub *web.Hub) (*web.Table, error)
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Table.Backend {
	case config.BackendMemory:
		return memoryBackend(cfg), nil
	case config.BackendPostgres:
		return postgresBackend(ctx, cfg)
	case config.BackendXLSX:
		return xlsxBackend(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Table.Backend)
	}
}

// memoryBackend keeps each table's seed rows in process.
func memoryBackend(cfg *config.Config) *backend {
	return &backend{
		open: func(ctx context.Context, def schema.Definition, hub *web.Hub) (*web.Table, error) {
			store := memstore.New(def, def.Seed, memstore.Config{
				Latency:     cfg.Table.MemoryLatency,
				FailureRate: cfg.Table.MemoryFailureRate,
			}, nil)
			return web.NewTable(def, web.TableConfig{
				Rows:    store.Rows(),
				Gateway: store.Gateway(),
				Load: func(context.Context) ([]table.Row, error) {
					return store.Rows(), nil
				},
				OperationTimeout: cfg.Table.OperationTimeout,
			}, hub)
		},
	}
}

// postgresBackend stores every table in PostgreSQL, one database table per
// definition.
func postgresBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return &backend{
		closers: []func(){pool.Close},
		open: func(ctx context.Context, def schema.Definition, hub *web.Hub) (*web.Table, error) {
			store, err := pgstore.New(pool, def, nil)
			if err != nil {
				return nil, err
			}
			if err := store.EnsureTable(ctx); err != nil {
				return nil, err
			}
			if cfg.Table.Seed {
				n, err := store.Seed(ctx, def.Seed)
				if err != nil {
					return nil, err
				}
				if n > 0 {
					slog.Info("seeded table", "table", def.Key, "rows", n)
				}
			}

			manual := cfg.Table.ManualPagination || def.Features.ManualPagination
			var rows []table.Row
			if !manual {
				if rows, err = store.Load(ctx); err != nil {
					return nil, err
				}
			}
			t, err := web.NewTable(def, web.TableConfig{
				Rows:             rows,
				Gateway:          store.Gateway(),
				Pager:            store,
				Manual:           manual,
				Load:             store.Load,
				OperationTimeout: cfg.Table.OperationTimeout,
			}, hub)
			if err != nil {
				return nil, err
			}
			if manual {
				if err := t.Refresh(ctx); err != nil {
					return nil, fmt.Errorf("load first page of %s: %w", def.Key, err)
				}
			}
			return t, nil
		},
	}, nil
}

// xlsxBackend keeps every table on its own sheet of one workbook and reloads
// tables when the workbook is edited outside the server.
func xlsxBackend(cfg *config.Config) *backend {
	b := &backend{}
	b.open = func(ctx context.Context, def schema.Definition, hub *web.Hub) (*web.Table, error) {
		store, err := xlsxstore.New(xlsxstore.Config{FilePath: cfg.Table.XLSXPath, SheetName: def.Sheet}, def, nil)
		if err != nil {
			return nil, err
		}
		if cfg.Table.Seed {
			if _, err := store.Seed(ctx, def.Seed); err != nil {
				return nil, err
			}
		}
		rows, err := store.Load(ctx)
		if err != nil {
			return nil, err
		}
		t, err := web.NewTable(def, web.TableConfig{
			Rows:             rows,
			Gateway:          store.Gateway(),
			Load:             store.Load,
			OperationTimeout: cfg.Table.OperationTimeout,
		}, hub)
		if err != nil {
			return nil, err
		}

		if cfg.Table.XLSXWatch {
			w, err := store.Watch(xlsxstore.WatchOptions{
				OnReload: func(rows []table.Row) {
					if err := t.Replace(rows); err != nil {
						slog.Warn("reload from workbook failed", "table", def.Key, "error", err)
						return
					}
					slog.Info("table reloaded from workbook", "table", def.Key, "rows", len(rows))
				},
				Debounce: cfg.Table.XLSXDebounce,
			})
			if err != nil {
				return nil, err
			}
			b.closers = append(b.closers, func() { _ = w.Close() })
		}
		return t, nil
	}
	return b
}
