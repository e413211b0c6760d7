//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_session.go -package=mocks
package session

import "github.com/omochice/chatanon/internal/identity"

// Transport is the part of the transport manager the session drives.
type Transport interface {
	Connect()
	Disconnect()
	Send(data []byte) error
}

// IdentityStore supplies the profile sent in user_data.
type IdentityStore interface {
	HasCompleteUserData() bool
	GetUserData() (identity.UserData, error)
}
