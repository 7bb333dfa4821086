package migration

import (
	"context"
	"fmt"
	"time"

	orderdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	providerdomain "github.com/railzwaylabs/paygate/internal/providers/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrateTimeout = 2 * time.Minute

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply runs the SQL migrations on Postgres. SQLite is a development and test
// target and is brought up to date with AutoMigrate instead.
func Apply(conn *gorm.DB, log *zap.Logger) error {
	log = log.Named("migration")
	if conn.Dialector.Name() == "sqlite" {
		log.Info("sqlite detected, using auto migrate")
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	return RunMigrations(ctx, sqlDB, log)
}

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.Transaction{},
		&orderdomain.EventRecord{},
		&providerdomain.ProviderConfig{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
