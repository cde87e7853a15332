package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"FallWatch.iot/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type UserRepository interface {
	Create(user models.User) (models.User, error)
	FindByEmail(email string) (models.User, error)
	FindByID(id int) (models.User, error)
}

// FileUserRepository keeps all accounts in one JSON array on disk. Emails are
// unique, case-insensitively, and ids increase monotonically.
type FileUserRepository struct {
	mu    sync.Mutex
	path  string
	users []models.User
}

func NewFileUserRepository(path string) (*FileUserRepository, error) {
	r := &FileUserRepository{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r.users); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	return r, nil
}

func (r *FileUserRepository) Create(user models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nextID := 1
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return models.User{}, ErrDuplicateEmail
		}
		if u.ID >= nextID {
			nextID = u.ID + 1
		}
	}
	user.ID = nextID

	users := append(append([]models.User(nil), r.users...), user)
	if err := r.save(users); err != nil {
		return models.User{}, err
	}
	r.users = users
	return user, nil
}

func (r *FileUserRepository) FindByEmail(email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (r *FileUserRepository) FindByID(id int) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (r *FileUserRepository) save(users []models.User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create users directory: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace users file: %w", err)
	}
	return nil
}
