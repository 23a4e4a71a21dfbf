package server

import (
	"fmt"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog/log"
)

// DemoPassword is shared by every seeded DEV account
const DemoPassword = "Password123"

// demoAccounts gives each platform role one account to sign in with
var demoAccounts = []users.User{
	{Username: "admin", Email: "admin@example.com", FirstName: "Ada", LastName: "Admin", Role: users.RoleAdmin},
	{Username: "staff", Email: "staff@example.com", FirstName: "Sam", LastName: "Staff", Role: users.RoleStaff},
	{Username: "owner", Email: "owner@example.com", FirstName: "Olive", LastName: "Owner", Role: users.RoleRestaurantOwner},
	{Username: "driver", Email: "driver@example.com", FirstName: "Dev", LastName: "Driver", Role: users.RoleDriver},
	{Username: "customer", Email: "customer@example.com", FirstName: "Cara", LastName: "Customer", Role: users.RoleCustomer},
}

// InitialiseSystem seeds the demo accounts that do not exist yet
func (s *Server) InitialiseSystem() error {
	hash, err := users.HashPassword(DemoPassword)
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to hash demo password: %w", err)
	}

	created := 0
	for _, user := range demoAccounts {
		if _, err := s.users.GetByUsername(user.Username); err == nil {
			continue
		} else if !autherrors.Is(err, autherrors.ErrUserNotFound) {
			return fmt.Errorf("[Server InitialiseSystem] looking up %s: %w", user.Username, err)
		}

		account := &users.Account{User: user, PasswordHash: hash, DateJoined: token.NowTimeFunc()}
		if err := s.users.Upsert(account); err != nil {
			return fmt.Errorf("[Server InitialiseSystem] creating %s: %w", user.Username, err)
		}
		created++
		log.Info().Str("username", user.Username).Str("role", string(user.Role)).Str("id", account.ID.String()).Msg("Seeded demo account")
	}

	if created > 0 {
		log.Info().Str("password", DemoPassword).Msg("Demo accounts share this password")
	}
	return nil
}
