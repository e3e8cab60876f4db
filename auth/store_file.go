package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrStorageCorrupted is returned when the session file cannot be parsed.
var ErrStorageCorrupted = errors.New("session storage corrupted")

// storedSession is the on-disk shape: three independent string entries.
type storedSession struct {
	AccessToken  string `json:"auth_token,omitempty"`
	RefreshToken string `json:"auth_refresh,omitempty"`
	Expiration   string `json:"auth_token_exp,omitempty"`
}

// sessionFile holds sessions for several API servers, keyed by profile.
type sessionFile struct {
	Profiles map[string]*storedSession `json:"profiles"`
}

// FileBackend stores the session for one profile in a JSON file shared with
// other profiles. Writes go through a lock file and an atomic rename.
type FileBackend struct {
	path    string
	profile string
}

// NewFileBackend returns a backend for profile (usually the server URL) in path.
func NewFileBackend(path, profile string) *FileBackend {
	return &FileBackend{path: path, profile: profile}
}

// Path returns the session file location.
func (fb *FileBackend) Path() string {
	return fb.path
}

func (fb *FileBackend) Load(_ context.Context) (Session, error) {
	sf, err := fb.readFile()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, err
	}

	stored, ok := sf.Profiles[fb.profile]
	if !ok || stored == nil {
		return Session{}, nil
	}

	s := Session{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
	}
	if stored.Expiration != "" {
		exp, err := ParseExpiration(stored.Expiration)
		if err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrStorageCorrupted, err)
		}
		s.ExpiresAt = exp
	}
	return s, nil
}

func (fb *FileBackend) Save(ctx context.Context, s Session) error {
	return fb.modify(ctx, func(sf *sessionFile) {
		sf.Profiles[fb.profile] = &storedSession{
			AccessToken:  s.AccessToken,
			RefreshToken: s.RefreshToken,
			Expiration:   formatExpiration(s.ExpiresAt),
		}
	})
}

func (fb *FileBackend) Delete(ctx context.Context) error {
	return fb.modify(ctx, func(sf *sessionFile) {
		delete(sf.Profiles, fb.profile)
	})
}

func (fb *FileBackend) readFile() (*sessionFile, error) {
	data, err := os.ReadFile(fb.path)
	if err != nil {
		return nil, err
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupted, err)
	}
	if sf.Profiles == nil {
		sf.Profiles = make(map[string]*storedSession)
	}
	return &sf, nil
}

// modify applies fn to the file contents under the lock and atomically
// replaces the file. Other profiles are preserved; an unreadable file is
// started over.
func (fb *FileBackend) modify(ctx context.Context, fn func(*sessionFile)) error {
	if dir := filepath.Dir(fb.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	lock, err := acquireFileLock(ctx, fb.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.release()

	sf, err := fb.readFile()
	if err != nil {
		sf = &sessionFile{Profiles: make(map[string]*storedSession)}
	}

	fn(sf)

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	tmp := fb.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, fb.path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				rmErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
