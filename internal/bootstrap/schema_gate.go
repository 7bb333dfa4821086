package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railzwaylabs/paygate/internal/migration"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const schemaStateTable = "schema_state"

var (
	ErrSchemaStateNotFound    = errors.New("schema state not found, run paygate migrate")
	ErrSchemaVersionMismatch  = errors.New("schema version mismatch")
	ErrSchemaChecksumMismatch = errors.New("schema checksum mismatch")
)

type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

type SchemaState struct {
	SchemaVersion string    `gorm:"column:schema_version"`
	Checksum      *string   `gorm:"column:checksum"`
	AppliedAt     *time.Time `gorm:"column:applied_at"`
}

type schemaGate struct {
	db               *gorm.DB
	log              *zap.Logger
	expectedVersion  string
	expectedChecksum string
}

func NewSchemaGate(db *gorm.DB, log *zap.Logger) (SchemaGate, error) {
	if db == nil {
		return nil, errors.New("schema gate requires database handle")
	}

	latestVersion, err := migration.LatestMigrationVersion()
	if err != nil {
		return nil, err
	}
	expectedChecksum, err := migration.MigrationsChecksum()
	if err != nil {
		return nil, err
	}

	return &schemaGate{
		db:               db,
		log:              log.Named("bootstrap.schema"),
		expectedVersion:  fmt.Sprintf("%d", latestVersion),
		expectedChecksum: expectedChecksum,
	}, nil
}

// MustBeActive is a no-op on SQLite, which is migrated with AutoMigrate and
// never records a schema state.
func (g *schemaGate) MustBeActive(ctx context.Context) error {
	if g.db.Dialector.Name() == "sqlite" {
		g.log.Debug("schema gate skipped for sqlite")
		return nil
	}

	state, err := g.load(ctx)
	if err != nil {
		return err
	}
	if err := g.check(state); err != nil {
		return err
	}
	g.log.Info("schema active",
		zap.String("version", state.SchemaVersion),
		zap.Timep("applied_at", state.AppliedAt))
	return nil
}

func (g *schemaGate) load(ctx context.Context) (*SchemaState, error) {
	var state SchemaState
	result := g.db.WithContext(ctx).Table(schemaStateTable).
		Select("schema_version, checksum, applied_at").
		Where("id = TRUE").
		Limit(1).
		Scan(&state)
	if result.Error != nil {
		return nil, fmt.Errorf("load schema state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrSchemaStateNotFound
	}

	state.SchemaVersion = strings.TrimSpace(state.SchemaVersion)
	if state.Checksum != nil {
		trimmed := strings.TrimSpace(*state.Checksum)
		state.Checksum = &trimmed
	}
	return &state, nil
}

func (g *schemaGate) check(state *SchemaState) error {
	if state.SchemaVersion != g.expectedVersion {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaVersionMismatch, state.SchemaVersion, g.expectedVersion)
	}
	if state.Checksum != nil && *state.Checksum != "" {
		if g.expectedChecksum == "" || *state.Checksum != g.expectedChecksum {
			return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaChecksumMismatch, *state.Checksum, g.expectedChecksum)
		}
	}
	return nil
}
