package migration

import (
	"github.com/saasfoundry/lemonsync/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The embedded migrations target postgres; sqlite is only used by
		// tests, which create their own schema.
		if cfg.DBType != "postgres" {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
