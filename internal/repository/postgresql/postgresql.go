package postgresql

import (
	"context"
	"fmt"

	opentracing "github.com/opentracing/opentracing-go"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/log/zapadapter"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Config defines database configuration, usable for Viper
type Config struct {
	Name           string `mapstructure:"name"`
	Hostname       string `mapstructure:"hostname"`
	Port           string `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"sslmode"`
	LogLevel       string `mapstructure:"log_level"`
	MinConnections int32  `mapstructure:"min_connections"`
	MaxConnections int32  `mapstructure:"max_connections"`
}

type Repository struct {
	pool   *pgxpool.Pool
	tracer opentracing.Tracer
}

func NewZapLogger(logger *zap.Logger) *zapadapter.Logger {
	return zapadapter.NewLogger(logger)
}

// New creates database pool configuration
func New(databaseConfig *Config, logger pgx.Logger, tracer opentracing.Tracer) (*Repository, error) {
	postgresDataSource := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		databaseConfig.Username,
		databaseConfig.Password,
		databaseConfig.Hostname,
		databaseConfig.Port,
		databaseConfig.Name,
		databaseConfig.SSLMode)
	poolConfig, err := pgxpool.ParseConfig(postgresDataSource)
	if err != nil {
		return nil, err
	}
	poolConfig.ConnConfig.Logger = logger
	logLevelMapping := map[string]pgx.LogLevel{
		"trace": pgx.LogLevelTrace,
		"debug": pgx.LogLevelDebug,
		"info":  pgx.LogLevelInfo,
		"warn":  pgx.LogLevelWarn,
		"error": pgx.LogLevelError,
	}
	poolConfig.ConnConfig.LogLevel = logLevelMapping[databaseConfig.LogLevel]
	poolConfig.MaxConns = databaseConfig.MaxConnections
	poolConfig.MinConns = databaseConfig.MinConnections

	pool, err := pgxpool.ConnectConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, err
	}
	return &Repository{pool: pool, tracer: tracer}, nil
}

// Healthcheck is needed for application healtchecks
func (repository *Repository) Healthcheck(ctx context.Context) error {
	var exists bool
	query := "select exists (select 1 from feed limit 1)"
	row := repository.pool.QueryRow(ctx, query)
	if err := row.Scan(&exists); err != nil {
		return err
	}
	return nil
}

func (repository *Repository) setupTracingSpan(ctx context.Context, name string, query string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, repository.tracer, name)
	span.SetTag("component", "repository")
	span.SetTag("db.type", "sql")
	span.SetTag("db.query", query)
	return span, ctx
}
