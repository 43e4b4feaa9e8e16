package migrations

// Source documents are stored as binary blobs; the column type differs by
// driver (BLOB for SQLite, BYTEA for PostgreSQL, LONGBLOB for MySQL).

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSourceDocuments, downCreateSourceDocuments)
}

func upCreateSourceDocuments(ctx context.Context, tx *sql.Tx) error {
	var blob string
	switch dialect {
	case "postgres":
		blob = "BYTEA"
	case "mysql":
		blob = "LONGBLOB"
	default: // sqlite3
		blob = "BLOB"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS source_documents (
    ref          VARCHAR(36)  PRIMARY KEY,
    name         VARCHAR(255) NOT NULL,
    content_type VARCHAR(255) NOT NULL,
    size         BIGINT       NOT NULL,
    data         %s NOT NULL,
    created_at   TIMESTAMP    NOT NULL
)`, blob)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create source_documents table: %w", err)
	}
	return nil
}

func downCreateSourceDocuments(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS source_documents`)
	return err
}
