package db

import (
	"context"
	"time"

	"github.com/saasfoundry/lemonsync/internal/config"
	"github.com/saasfoundry/lemonsync/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

func Open(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(logger.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	}
	if cfg.DBMaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	}
	if cfg.DBConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				if log != nil {
					log.Info("closing database connection")
				}
				return sqlDB.Close()
			},
		})
	}

	return conn, nil
}
