package database

import "time"

type Document struct {
	Id        int
	DocId     string
	Title     string
	Content   string
	OwnerId   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DocumentShare struct {
	Id         int
	DocumentId int
	SharedWith int
	Permission string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId       int
	Username     string
	PasswordHash string
}

type CreateDocumentParams struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	OwnerId int    `json:"-"`
	DocId   string `json:"doc_id"`
}

type UpdateDocumentParams struct {
	Id      int
	Title   *string
	Content *string
}

type CreateShareParams struct {
	DocumentId int    `json:"document_id"`
	SharedWith int    `json:"shared_with"`
	Permission string `json:"permission"`
}
