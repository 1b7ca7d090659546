package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/linkpulse/config"
)

const defaultDialTimeout = 5 * time.Second

// PoolSettings are the parsed pool knobs shared by pgxpool and database/sql.
type PoolSettings struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// ParsePoolSettings validates the duration strings in cfg. Zero values mean
// "use the driver default".
func ParsePoolSettings(cfg config.PostgresConfig) (PoolSettings, error) {
	s := PoolSettings{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns}
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"max_conn_lifetime", cfg.MaxConnLifetime, &s.MaxConnLifetime},
		{"max_conn_idle_time", cfg.MaxConnIdleTime, &s.MaxConnIdleTime},
		{"health_check_period", cfg.HealthCheckPeriod, &s.HealthCheckPeriod},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return s, fmt.Errorf("postgres: invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}
	if s.MinConns > 0 && s.MaxConns > 0 && s.MinConns > s.MaxConns {
		return s, fmt.Errorf("postgres: min_conns %d exceeds max_conns %d", s.MinConns, s.MaxConns)
	}
	return s, nil
}

// NewPool creates a pgx connection pool using the provided config and verifies connectivity.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	settings, err := ParsePoolSettings(cfg)
	if err != nil {
		return nil, err
	}
	if settings.MaxConns > 0 {
		poolCfg.MaxConns = settings.MaxConns
	}
	if settings.MinConns > 0 {
		poolCfg.MinConns = settings.MinConns
	}
	if settings.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = settings.MaxConnLifetime
	}
	if settings.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = settings.MaxConnIdleTime
	}
	if settings.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = settings.HealthCheckPeriod
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}

// ConnString renders cfg as a postgres:// URL.
func ConnString(cfg config.PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	switch {
	case cfg.User != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.User, cfg.Password)
	case cfg.User != "":
		u.User = url.User(cfg.User)
	}
	return u.String()
}
