package directory

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NicolasHaas/staffchat/pkg/model"
)

// UserStore is the persistence collaborator behind the Directory. The
// directory keeps all records in memory; the store only needs load-all and
// save-all semantics. Online flags are runtime state and are not persisted.
type UserStore interface {
	LoadAll() ([]model.UserRecord, error)
	SaveAll([]model.UserRecord) error
	Close() error
}

// FileStore persists users as a line-oriented flat file:
//
//	username|passwordHash|fullName|department|position
//
// The whole file is rewritten on every save, via a temp file and rename so a
// crash mid-write cannot corrupt the previous snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path. The file need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) LoadAll() ([]model.UserRecord, error) {
	f, err := os.Open(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil // first run, empty directory
	}
	if err != nil {
		return nil, fmt.Errorf("directory: open user file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var users []model.UserRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "|")
		if len(parts) < 5 {
			continue // malformed line, skip
		}
		users = append(users, model.UserRecord{
			Username:     parts[0],
			PasswordHash: parts[1],
			FullName:     parts[2],
			Department:   parts[3],
			Position:     parts[4],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("directory: read user file: %w", err)
	}
	return users, nil
}

func (fs *FileStore) SaveAll(users []model.UserRecord) error {
	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".users-*")
	if err != nil {
		return fmt.Errorf("directory: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, u := range users {
		if _, err := fmt.Fprintf(w, "%s|%s|%s|%s|%s\n",
			u.Username, u.PasswordHash, u.FullName, u.Department, u.Position); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("directory: write user file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("directory: flush user file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("directory: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("directory: replace user file: %w", err)
	}
	return nil
}

func (fs *FileStore) Close() error {
	return nil
}
