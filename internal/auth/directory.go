package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUsernameTaken is returned by Register for an existing username.
	ErrUsernameTaken = errors.New("username already registered")
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

type account struct {
	hash []byte
	role model.Role
}

// Directory is the demo-mode user list: seeded from config, extended by
// Register. It lives only as long as the process.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]account
}

// NewDirectory parses "name:password:role" entries and hashes every password.
func NewDirectory(entries []string) (*Directory, error) {
	d := &Directory{accounts: make(map[string]account, len(entries))}
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("demo user %q: want name:password[:role]", entry)
		}
		role := model.RoleUser
		if len(parts) == 3 {
			role = model.ParseRole(strings.ToUpper(strings.TrimSpace(parts[2])))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(parts[1]), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", parts[0], err)
		}
		d.accounts[parts[0]] = account{hash: hash, role: role}
	}
	return d, nil
}

// Login checks the password and returns the matching actor. The username is
// the actor id.
func (d *Directory) Login(name, password string) (model.Actor, error) {
	d.mu.RLock()
	acc, ok := d.accounts[name]
	d.mu.RUnlock()
	if !ok {
		return model.Actor{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return model.Actor{}, ErrInvalidCredentials
	}
	return model.Actor{ID: name, Role: acc.role}, nil
}

// Register adds a USER account. Usernames are unique; the check and insert
// happen under one lock so concurrent registrations cannot both win.
func (d *Directory) Register(name, password string) (model.Actor, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minUsernameLength || strings.ContainsAny(name, ": \t") {
		return model.Actor{}, model.NewValidationError("username", fmt.Sprintf("must be at least %d characters without spaces or colons", minUsernameLength))
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return model.Actor{}, model.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Actor{}, fmt.Errorf("hash password for %s: %w", name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.accounts[name]; exists {
		return model.Actor{}, ErrUsernameTaken
	}
	d.accounts[name] = account{hash: hash, role: model.RoleUser}
	return model.Actor{ID: name, Role: model.RoleUser}, nil
}
