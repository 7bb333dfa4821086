package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

type migrationFile struct {
	name    string
	version uint
}

// upMigrations lists the embedded .up.sql files ordered by version.
func upMigrations() ([]migrationFile, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	files := make([]migrationFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version, ok := parseMigrationVersion(name)
		if !ok {
			return nil, fmt.Errorf("invalid migration filename: %s", name)
		}
		files = append(files, migrationFile{name: name, version: version})
	}
	if len(files) == 0 {
		return nil, errors.New("no embedded migrations found")
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// LatestMigrationVersion returns the highest embedded migration version.
func LatestMigrationVersion() (uint, error) {
	files, err := upMigrations()
	if err != nil {
		return 0, err
	}
	return files[len(files)-1].version, nil
}

// MigrationsChecksum hashes the names and contents of the up migrations in
// version order. The bootstrap schema gate compares it with schema_state.
func MigrationsChecksum() (string, error) {
	files, err := upMigrations()
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	for _, f := range files {
		content, err := embeddedMigrations.ReadFile(migrationsDir + "/" + f.name)
		if err != nil {
			return "", fmt.Errorf("read migration %s: %w", f.name, err)
		}
		_, _ = hasher.Write([]byte(f.name))
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write(content)
		_, _ = hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// parseMigrationVersion reads the numeric prefix of "0003_create_x.up.sql".
func parseMigrationVersion(name string) (uint, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" {
		return 0, false
	}
	parsed, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(parsed), true
}
