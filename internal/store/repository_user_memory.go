package store

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-todo-auth/models"
)

type memoryBackupCode struct {
	used bool
}

// memoryUserRepository is an in-process [UserRepository] used when no
// database is configured and in tests. All state lives behind one mutex.
type memoryUserRepository struct {
	mu          sync.RWMutex
	users       map[string]models.User
	emails      map[string]string
	backupCodes map[string]map[string]*memoryBackupCode
	now         func() time.Time
}

// NewMemoryUserRepository constructs an empty in-process [UserRepository].
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		users:       make(map[string]models.User),
		emails:      make(map[string]string),
		backupCodes: make(map[string]map[string]*memoryBackupCode),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryUserRepository) CreateUser(_ context.Context, user models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.emails[user.Email]; ok {
		return models.User{}, ErrEmailAlreadyExists
	}
	if _, ok := r.users[user.UserID]; ok {
		return models.User{}, ErrEmailAlreadyExists
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = nil
	user.UpdatedAt = user.CreatedAt
	r.users[user.UserID] = user
	r.emails[user.Email] = user.UserID

	return copyUser(user), nil
}

func (r *memoryUserRepository) FindUserByID(_ context.Context, userID string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, ErrNoUserWasFound
	}
	return copyUser(user), nil
}

func (r *memoryUserRepository) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.emails[email]
	if !ok {
		return models.User{}, ErrNoUserWasFound
	}
	return copyUser(r.users[userID]), nil
}

func (r *memoryUserRepository) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return ErrNoUserWasFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = r.now()
	r.users[userID] = user
	return nil
}

func (r *memoryUserRepository) UpdateEmail(_ context.Context, userID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return ErrNoUserWasFound
	}
	if owner, taken := r.emails[email]; taken && owner != userID {
		return ErrEmailAlreadyExists
	}
	delete(r.emails, user.Email)
	user.Email = email
	user.UpdatedAt = r.now()
	r.users[userID] = user
	r.emails[email] = userID
	return nil
}

func (r *memoryUserRepository) UpdateTwoFactor(_ context.Context, userID string, enabled bool, secret *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return ErrNoUserWasFound
	}
	user.TwoFactorEnabled = enabled
	user.TwoFactorSecret = nil
	if enabled && secret != nil {
		s := *secret
		user.TwoFactorSecret = &s
	}
	user.UpdatedAt = r.now()
	r.users[userID] = user
	return nil
}

func (r *memoryUserRepository) ReplaceBackupCodes(_ context.Context, userID string, codeHashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make(map[string]*memoryBackupCode, len(codeHashes))
	for _, h := range codeHashes {
		codes[h] = &memoryBackupCode{}
	}
	r.backupCodes[userID] = codes
	return nil
}

func (r *memoryUserRepository) ConsumeBackupCode(_ context.Context, userID, codeHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.backupCodes[userID][codeHash]
	if !ok || code.used {
		return false, nil
	}
	code.used = true
	return true, nil
}

func (r *memoryUserRepository) DeleteBackupCodes(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.backupCodes, userID)
	return nil
}

func (r *memoryUserRepository) CountBackupCodes(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, code := range r.backupCodes[userID] {
		if !code.used {
			count++
		}
	}
	return count, nil
}

func (r *memoryUserRepository) Ping(context.Context) error {
	return nil
}

func copyUser(u models.User) models.User {
	if u.TwoFactorSecret != nil {
		s := *u.TwoFactorSecret
		u.TwoFactorSecret = &s
	}
	return u
}
