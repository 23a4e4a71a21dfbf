package users

type Repo interface {
	Upsert(account *Account) error
	GetByID(id ID) (*Account, error)
	GetByUsername(username string) (*Account, error)
	GetByEmail(email string) (*Account, error)
	List(offset, limit int) ([]*Account, error)
}
