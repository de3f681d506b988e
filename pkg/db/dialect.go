package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/saasfoundry/lemonsync/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case "sqlite":
		return sqlite.Open("lemonsync.db"), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}
