package database

import (
	"fmt"
	"time"
)

const documentColumns = "id, doc_id, title, content, owner_id, created_at, updated_at"

func (db *PgDocumentRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgDocumentRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET username = $2, password_hash = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING id, username, email",
		params.UserId,
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgDocumentRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgDocumentRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)
	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
	)

	return user, err
}

func (db *PgDocumentRepository) CreateDocument(params CreateDocumentParams) (Document, error) {
	res := db.conn.QueryRow(
		"INSERT INTO documents (doc_id, title, content, owner_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING "+documentColumns,
		params.DocId,
		params.Title,
		params.Content,
		params.OwnerId,
		time.Now().UTC(),
	)

	return scanDocument(res)
}

func (db *PgDocumentRepository) GetDocumentById(id int) (Document, error) {
	row := db.conn.QueryRow(
		"SELECT "+documentColumns+" FROM documents WHERE id = $1 LIMIT 1",
		id,
	)

	return scanDocument(row)
}

func (db *PgDocumentRepository) GetDocumentByDocId(docId string) (Document, error) {
	row := db.conn.QueryRow(
		"SELECT "+documentColumns+" FROM documents WHERE doc_id = $1 LIMIT 1",
		docId,
	)

	return scanDocument(row)
}

func (db *PgDocumentRepository) ListDocumentsByOwner(ownerId int) ([]Document, error) {
	rows, err := db.conn.Query(
		"SELECT "+documentColumns+" FROM documents WHERE owner_id = $1 ORDER BY updated_at DESC",
		ownerId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err = rows.Scan(&doc.Id, &doc.DocId, &doc.Title, &doc.Content, &doc.OwnerId, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			break
		}

		docs = append(docs, doc)
	}
	return docs, err
}

// UpdateDocument applies partial updates. Nil fields are left untouched.
func (db *PgDocumentRepository) UpdateDocument(params UpdateDocumentParams) (Document, error) {
	row := db.conn.QueryRow(
		"UPDATE documents SET "+
			"title = COALESCE($2, title), "+
			"content = COALESCE($3, content), "+
			"updated_at = $4 "+
			"WHERE id = $1 RETURNING "+documentColumns,
		params.Id,
		params.Title,
		params.Content,
		time.Now().UTC(),
	)

	return scanDocument(row)
}

func (db *PgDocumentRepository) UpdateDocumentContent(id int, content string) error {
	res, err := db.conn.Exec(
		"UPDATE documents SET content = $2, updated_at = $3 WHERE id = $1",
		id,
		content,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document with id %d not found", id)
	}

	return nil
}

func (db *PgDocumentRepository) DeleteDocument(id int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM document_shares WHERE document_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgDocumentRepository) CreateShare(params CreateShareParams) (DocumentShare, error) {
	res := db.conn.QueryRow(
		"INSERT INTO document_shares (document_id, shared_with, permission, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, document_id, shared_with, permission",
		params.DocumentId,
		params.SharedWith,
		params.Permission,
		time.Now().UTC(),
	)

	var share DocumentShare
	err := res.Scan(
		&share.Id,
		&share.DocumentId,
		&share.SharedWith,
		&share.Permission,
	)

	return share, err
}

func (db *PgDocumentRepository) ListSharedDocuments(accountId int) ([]Document, error) {
	rows, err := db.conn.Query(
		"SELECT d.id, d.doc_id, d.title, d.content, d.owner_id, d.created_at, d.updated_at "+
			"FROM document_shares s JOIN documents d ON d.id = s.document_id "+
			"WHERE s.shared_with = $1 ORDER BY d.updated_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err = rows.Scan(&doc.Id, &doc.DocId, &doc.Title, &doc.Content, &doc.OwnerId, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			break
		}

		docs = append(docs, doc)
	}
	return docs, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	err := row.Scan(
		&doc.Id,
		&doc.DocId,
		&doc.Title,
		&doc.Content,
		&doc.OwnerId,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)

	return doc, err
}
