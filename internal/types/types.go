package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Document struct {
	Id        int       `json:"id"`
	DocId     string    `json:"doc_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OwnerId   int       `json:"owner_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type DocumentShare struct {
	Id         int       `json:"id"`
	DocumentId int       `json:"document_id"`
	SharedWith int       `json:"shared_with"`
	Permission string    `json:"permission"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}
