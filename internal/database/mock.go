package database

import (
	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockDocumentRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockDocumentRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockDocumentRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockDocumentRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockDocumentRepository) CreateDocument(params CreateDocumentParams) (Document, error) {
	args := m.Called(params)
	return args.Get(0).(Document), args.Error(1)
}
func (m *MockDocumentRepository) GetDocumentById(id int) (Document, error) {
	args := m.Called(id)
	return args.Get(0).(Document), args.Error(1)
}
func (m *MockDocumentRepository) GetDocumentByDocId(docId string) (Document, error) {
	args := m.Called(docId)
	return args.Get(0).(Document), args.Error(1)
}
func (m *MockDocumentRepository) ListDocumentsByOwner(ownerId int) ([]Document, error) {
	args := m.Called(ownerId)
	return args.Get(0).([]Document), args.Error(1)
}
func (m *MockDocumentRepository) UpdateDocument(params UpdateDocumentParams) (Document, error) {
	args := m.Called(params)
	return args.Get(0).(Document), args.Error(1)
}
func (m *MockDocumentRepository) UpdateDocumentContent(id int, content string) error {
	args := m.Called(id, content)
	return args.Error(0)
}
func (m *MockDocumentRepository) DeleteDocument(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockDocumentRepository) CreateShare(params CreateShareParams) (DocumentShare, error) {
	args := m.Called(params)
	return args.Get(0).(DocumentShare), args.Error(1)
}
func (m *MockDocumentRepository) ListSharedDocuments(accountId int) ([]Document, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Document), args.Error(1)
}
