package server

import (
	"database/sql"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/codocs/go-codocs/internal/database"
)

// ErrDocumentNotFound signals that no document matched a join identifier.
// It is a normal resolution outcome, not a storage failure.
var ErrDocumentNotFound = errors.New("document not found")

// Resolution is the outcome of mapping a join identifier to a document.
type Resolution struct {
	Doc     database.Document
	RoomKey string
}

type Resolver struct {
	db database.DocumentRepository
}

func NewResolver(db database.DocumentRepository) *Resolver {
	return &Resolver{db: db}
}

// Resolve maps a join identifier to a document and its canonical room key.
// The identifier is trimmed once, then an integral number is tried as a
// primary id; anything else, including a fractional number or a number
// matching no row, falls back to the alternate-key lookup.
func (r *Resolver) Resolve(ident Identifier) (Resolution, error) {
	if !ident.Set || ident.Value == "" {
		return Resolution{}, ErrDocumentNotFound
	}

	key := strings.TrimSpace(ident.Value)

	// a fractional number can never equal an integer primary id, so it
	// must not be truncated into one
	if n, err := strconv.ParseFloat(key, 64); err == nil && !math.IsInf(n, 0) && n == math.Trunc(n) {
		doc, err := r.db.GetDocumentById(int(n))
		switch {
		case err == nil:
			return Resolution{Doc: doc, RoomKey: roomKeyForDocument(doc.Id)}, nil
		case !errors.Is(err, sql.ErrNoRows):
			return Resolution{}, err
		}
	}

	doc, err := r.db.GetDocumentByDocId(key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Resolution{}, ErrDocumentNotFound
		}
		return Resolution{}, err
	}

	return Resolution{Doc: doc, RoomKey: roomKeyForDocument(doc.Id)}, nil
}
