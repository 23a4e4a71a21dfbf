package fakeuserrepo

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo keeps accounts in memory. Ids are assigned sequentially and
// serialise as JSON numbers, like the platform backend.
type FakeUserRepo struct {
	accounts  map[string]*users.Account // id -> account
	usernames map[string]string         // lower(username) -> id
	emails    map[string]string         // lower(email) -> id
	nextID    int64
	lock      sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts:  make(map[string]*users.Account),
		usernames: make(map[string]string),
		emails:    make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.ID.IsZero() {
		ur.nextID++
		account.ID = users.NumericID(ur.nextID)
	} else if n, err := strconv.ParseInt(account.ID.String(), 10, 64); err == nil && n > ur.nextID {
		ur.nextID = n
	}

	if id, ok := ur.usernames[strings.ToLower(account.Username)]; ok && account.Username != "" && id != account.ID.String() {
		return autherrors.ErrUserExists
	}
	if id, ok := ur.emails[strings.ToLower(account.Email)]; ok && account.Email != "" && id != account.ID.String() {
		return autherrors.ErrUserExists
	}

	stored := *account
	ur.accounts[account.ID.String()] = &stored
	if account.Username != "" {
		ur.usernames[strings.ToLower(account.Username)] = account.ID.String()
	}
	if account.Email != "" {
		ur.emails[strings.ToLower(account.Email)] = account.ID.String()
	}
	return nil
}

func (ur *FakeUserRepo) GetByID(id users.ID) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.get(id.String())
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernames[strings.ToLower(username)]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	return ur.get(id)
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emails[strings.ToLower(email)]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	return ur.get(id)
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	list := make([]*users.Account, 0, len(ur.accounts))
	for _, a := range ur.accounts {
		copied := *a
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID.String() < list[j].ID.String()
	})

	if offset >= len(list) {
		return []*users.Account{}, nil
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end], nil
}

// get must be called with the lock held
func (ur *FakeUserRepo) get(id string) (*users.Account, error) {
	a, ok := ur.accounts[id]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	copied := *a
	return &copied, nil
}
