package mongodb

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations runs the embedded migrations against the given database.
// Each migration source tracks its version in its own collection so that
// multiple modules can migrate the same database independently.
func ApplyMigrations(migrations embed.FS, uri string, dbName string, versionCollection string) error {
	d, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	url := uri + dbName + sep + "x-migrations-collection=" + versionCollection

	mig, err := migrate.NewWithSourceInstance("iofs", d, url)
	if err != nil {
		return err
	}

	err = mig.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
