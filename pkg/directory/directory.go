// Package directory implements the authoritative store of user records:
// credentials, profile fields, and online presence.
package directory

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/NicolasHaas/staffchat/pkg/crypto"
	"github.com/NicolasHaas/staffchat/pkg/model"
)

var (
	ErrAlreadyExists = errors.New("directory: username already exists")
	ErrNotFound      = errors.New("directory: user not found")
	ErrWrongPassword = errors.New("directory: wrong password")
)

// Directory is a concurrency-safe in-memory user registry with decoupled
// persistence: mutations update the map under the lock and signal a background
// saver, which snapshots and writes through the UserStore outside the lock.
// A slow disk write therefore never stalls lookups or message routing.
type Directory struct {
	store UserStore

	mu    sync.RWMutex
	users map[string]*model.UserRecord

	saveCh chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// New loads all records from the store and starts the background saver.
// Callers own the store only until New returns; Close closes it.
func New(store UserStore) (*Directory, error) {
	records, err := store.LoadAll()
	if err != nil {
		return nil, err
	}

	d := &Directory{
		store:  store,
		users:  make(map[string]*model.UserRecord, len(records)),
		saveCh: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, r := range records {
		r := r
		r.Online = false // presence is runtime state, never loaded
		d.users[r.Username] = &r
	}
	go d.saver()

	slog.Info("directory loaded", "users", len(d.users))
	return d, nil
}

// Close flushes pending changes and closes the store.
func (d *Directory) Close() error {
	close(d.stop)
	<-d.done
	if err := d.persist(); err != nil {
		_ = d.store.Close()
		return err
	}
	return d.store.Close()
}

// Register creates a new user record with a hashed password.
// Returns ErrAlreadyExists if the username is taken.
func (d *Directory) Register(username, password, fullName, department, position string) error {
	if err := model.ValidateUsername(username); err != nil {
		return err
	}
	for _, field := range []string{fullName, department, position} {
		if err := model.ValidateProfileField(field); err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("directory: password must not be empty")
	}

	// Hash before taking the lock; argon2id is deliberately slow.
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if _, exists := d.users[username]; exists {
		d.mu.Unlock()
		return ErrAlreadyExists
	}
	d.users[username] = &model.UserRecord{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Department:   department,
		Position:     position,
	}
	d.mu.Unlock()

	d.requestSave()
	return nil
}

// Authenticate verifies a username/password pair.
// Returns ErrNotFound or ErrWrongPassword on failure.
func (d *Directory) Authenticate(username, password string) error {
	d.mu.RLock()
	u, ok := d.users[username]
	var hash string
	if ok {
		hash = u.PasswordHash
	}
	d.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	ok, err := crypto.VerifyPassword(password, hash)
	if err != nil {
		return fmt.Errorf("directory: verify %q: %w", username, err)
	}
	if !ok {
		return ErrWrongPassword
	}
	return nil
}

// SetOnline updates a user's presence flag. Unknown usernames are ignored.
func (d *Directory) SetOnline(username string, online bool) {
	d.mu.Lock()
	if u, ok := d.users[username]; ok {
		u.Online = online
	}
	d.mu.Unlock()
}

// Get returns a redacted copy of a user record.
func (d *Directory) Get(username string) (model.UserRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[username]
	if !ok {
		return model.UserRecord{}, false
	}
	return u.Redacted(), true
}

// ListOnline returns redacted records of all currently online users,
// sorted by username.
func (d *Directory) ListOnline() []model.UserRecord {
	return d.list(func(u *model.UserRecord) bool { return u.Online })
}

// ListAll returns redacted records of every registered user, sorted by
// username.
func (d *Directory) ListAll() []model.UserRecord {
	return d.list(func(*model.UserRecord) bool { return true })
}

// ListByDepartment returns redacted records of users with an exactly matching
// department, sorted by username.
func (d *Directory) ListByDepartment(department string) []model.UserRecord {
	return d.list(func(u *model.UserRecord) bool { return u.Department == department })
}

// Search returns redacted records whose username, full name, or department
// contains the query, case-insensitively. Results are sorted by username,
// not ranked.
func (d *Directory) Search(query string) []model.UserRecord {
	q := strings.ToLower(query)
	return d.list(func(u *model.UserRecord) bool {
		return strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.FullName), q) ||
			strings.Contains(strings.ToLower(u.Department), q)
	})
}

// Count returns the number of registered users.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func (d *Directory) list(keep func(*model.UserRecord) bool) []model.UserRecord {
	d.mu.RLock()
	result := make([]model.UserRecord, 0, len(d.users))
	for _, u := range d.users {
		if keep(u) {
			result = append(result, u.Redacted())
		}
	}
	d.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result
}

// requestSave signals the saver without blocking. Coalesces bursts: at most
// one pending save is queued.
func (d *Directory) requestSave() {
	select {
	case d.saveCh <- struct{}{}:
	default:
	}
}

func (d *Directory) saver() {
	defer close(d.done)
	for {
		select {
		case <-d.saveCh:
			if err := d.persist(); err != nil {
				slog.Error("directory save failed", "err", err)
			}
		case <-d.stop:
			return
		}
	}
}

// persist snapshots the user set under the read lock and writes it out with
// the lock released.
func (d *Directory) persist() error {
	d.mu.RLock()
	snapshot := make([]model.UserRecord, 0, len(d.users))
	for _, u := range d.users {
		snapshot = append(snapshot, *u)
	}
	d.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Username < snapshot[j].Username })
	return d.store.SaveAll(snapshot)
}
