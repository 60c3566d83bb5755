package database

type DocumentRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateDocument(params CreateDocumentParams) (Document, error)
	GetDocumentById(id int) (Document, error)
	GetDocumentByDocId(docId string) (Document, error)
	ListDocumentsByOwner(ownerId int) ([]Document, error)
	UpdateDocument(params UpdateDocumentParams) (Document, error)
	UpdateDocumentContent(id int, content string) error
	DeleteDocument(id int) error
	CreateShare(params CreateShareParams) (DocumentShare, error)
	ListSharedDocuments(accountId int) ([]Document, error)
}
