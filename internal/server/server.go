package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	mwecho "github.com/labstack/echo/v4/middleware"
	mwsvc "winsbygroup.com/licverify/internal/middleware"

	"winsbygroup.com/licverify/internal/activation"
	"winsbygroup.com/licverify/internal/backup"
	"winsbygroup.com/licverify/internal/config"
	"winsbygroup.com/licverify/internal/demodata"
	"winsbygroup.com/licverify/internal/http/api"
	"winsbygroup.com/licverify/internal/license"
	"winsbygroup.com/licverify/internal/sqlite"

	adminhttp "winsbygroup.com/licverify/internal/http/admin"
	clienthttp "winsbygroup.com/licverify/internal/http/client"
	licmongo "winsbygroup.com/licverify/internal/mongo"
	licredis "winsbygroup.com/licverify/internal/redis"
)

type Server struct {
	Echo  *echo.Echo
	HTTP  *http.Server
	Store license.Store
	DB    *sqlx.DB // nil unless the sqlite store is in use

	closers []func(context.Context) error
}

// Close releases the store connections.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	s := &Server{}

	if cfg.AdminAPIKey == "" {
		log.Warn().Msg("API_KEY not configured, admin endpoints will reject all requests")
	}

	//
	// Store
	//
	isNewStore, err := s.openStore(ctx, cfg, log)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	// Load demo data if requested and the sqlite database is new.
	// Document stores skip keys that already exist.
	if cfg.DemoMode && (isNewStore || cfg.Store != config.StoreSQLite) {
		n, err := demodata.Load(ctx, s.Store)
		if err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("load demo data: %w", err)
		}
		log.Info().Int("licenses", n).Msg("demo data loaded")
	}

	//
	// Domain services
	//
	activationSvc := activation.NewService(s.Store, log)

	var backupSvc *backup.Service
	if s.DB != nil {
		backupSvc = backup.NewService(s.DB, cfg.DBPath, log)
	}

	//
	// Handlers
	//
	clientHandler := clienthttp.NewHandler(activationSvc)
	adminHandler := adminhttp.NewHandler(s.Store, backupSvc)

	//
	// Echo
	//
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(log)
	e.Validator = api.NewValidator()

	// Middleware
	e.Use(mwecho.Recover())
	e.Use(mwecho.RequestIDWithConfig(mwecho.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(mwsvc.RequestLogger(log))
	e.Use(mwecho.CORSWithConfig(mwecho.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(mwecho.ContextTimeout(cfg.RequestTimeout))

	// Health endpoints
	e.GET("/livez", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/readyz", func(c echo.Context) error {
		if err := s.Store.Ping(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "store not ready")
		}
		return c.String(http.StatusOK, "Ready")
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Client API
	clienthttp.RegisterRoutes(e.Group("/api"), clientHandler)

	// Admin API
	adminGroup := e.Group("/api/admin")
	adminGroup.Use(mwsvc.AdminAPIKeyAuth(cfg.AdminAPIKey))
	adminhttp.RegisterRoutes(adminGroup, adminHandler)

	//
	// HTTP server
	//
	s.Echo = e
	s.HTTP = &http.Server{
		Addr:         cfg.Addr,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

// openStore connects the configured backend and reports whether it was
// newly created (sqlite only).
func (s *Server) openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (bool, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		isNew := false
		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			isNew = true
			log.Info().Str("path", cfg.DBPath).Str("source", cfg.DBPathSource).Msg("creating database")
		} else {
			log.Info().Str("path", cfg.DBPath).Str("source", cfg.DBPathSource).Msg("opening database")
		}
		db, err := OpenSQLite(cfg.DBPath, log)
		if err != nil {
			return false, err
		}
		s.DB = db
		s.Store = license.New(db)
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
		return isNew, nil

	case config.StoreMongo:
		client, db, err := licmongo.Connect(ctx, licmongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return false, err
		}
		s.closers = append(s.closers, client.Disconnect)
		store := licmongo.NewLicenseStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return false, err
		}
		s.Store = store
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongo store")
		return false, nil

	case config.StoreRedis:
		client, err := licredis.Connect(ctx, licredis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return false, err
		}
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
		s.Store = licredis.NewLicenseStore(client, licredis.DefaultPrefix)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis store")
		return false, nil
	}
	return false, fmt.Errorf("unknown store %q", cfg.Store)
}

// OpenSQLite opens (creating if needed) and migrates the license database.
func OpenSQLite(path string, log zerolog.Logger) (*sqlx.DB, error) {
	// busy_timeout makes concurrent binds wait for the write lock instead of failing
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode is only required once after creating the database, but
	// doesn't hurt to set it each time
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	if err := sqlite.RunMigrations(db.DB, log); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Routes returns "METHOD path" lines sorted by path.
func (s *Server) Routes() []string {
	routes := s.Echo.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})

	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, fmt.Sprintf("%-6s %s", r.Method, r.Path))
	}
	return out
}
