package database

import (
	"database/sql"
)

type PgDocumentRepository struct {
	conn *sql.DB
}

func NewPgDocumentRepository(dsn string) (*PgDocumentRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgDocumentRepository{conn: db}, nil
}

func (db *PgDocumentRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgDocumentRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
