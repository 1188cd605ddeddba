package annotation

import (
	"database/sql"
	"fmt"

	"github.com/cyclopcam/logs"
	_ "modernc.org/sqlite"

	"github.com/lewtec/rotulador-video/internal/repository"
)

func GetDatabase(filename string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	if filename == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenDatabase opens the class catalog and export history, migrating it to the current schema
func OpenDatabase(log logs.Log, filename string) (*sql.DB, error) {
	db, err := GetDatabase(filename)
	if err != nil {
		return nil, fmt.Errorf("while opening database '%s': %w", filename, err)
	}
	log.Infof("PrepareDatabase: applying migrations to %v", filename)
	if err := repository.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	version, _, err := repository.SchemaVersion(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("while reading schema version: %w", err)
	}
	log.Infof("PrepareDatabase: schema at version %v", version)
	return db, nil
}
