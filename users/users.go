package users

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is the platform role carried by a user record
type RoleType string

const (
	RoleCustomer        RoleType = "customer"         // Orders food in the customer app
	RoleRestaurantOwner RoleType = "restaurant_owner" // Manages menus and orders for a restaurant
	RoleDriver          RoleType = "driver"           // Delivery driver dashboard
	RoleStaff           RoleType = "staff"            // Operations staff in the admin console
	RoleAdmin           RoleType = "admin"            // Full access to the admin console
)

var knownRoles = []RoleType{RoleCustomer, RoleRestaurantOwner, RoleDriver, RoleStaff, RoleAdmin}

// ParseRole normalises a role name. Backends disagree on case, so
// "ADMIN" and "admin" are the same role.
func ParseRole(s string) (RoleType, bool) {
	role := RoleType(strings.ToLower(strings.TrimSpace(s)))
	return role, slices.Contains(knownRoles, role)
}

// User is the identity record the backend returns on login and which is
// persisted alongside the bearer token.
type User struct {
	ID        ID       `json:"id"`
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Role      RoleType `json:"role,omitempty"`
}

// IsZero reports whether the record carries no identifying field
func (u User) IsZero() bool {
	return u.ID.IsZero() && u.Username == "" && u.Email == ""
}

func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

func (u User) HasRole(roles ...RoleType) bool {
	return slices.Contains(roles, u.Role)
}

// Account is the dev backend's stored form of a user
type Account struct {
	User
	PasswordHash string    `json:"-"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
	LastLogin    time.Time `json:"last_login,omitempty"`
	Blocked      bool      `json:"blocked,omitempty"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
