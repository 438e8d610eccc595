package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/id"
)

type accountModel struct {
	ID        string    `bson:"_id"`
	Handle    string    `bson:"handle"`
	Balance   int64     `bson:"balance"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: account %s: %w", m.Handle, err)
	}
	a := &account.Account{
		ID:      accountID,
		Handle:  m.Handle,
		Balance: m.Balance,
	}
	a.CreatedAt = m.CreatedAt.UTC()
	a.UpdatedAt = m.UpdatedAt.UTC()
	return a, nil
}
