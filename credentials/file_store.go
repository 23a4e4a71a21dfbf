package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FileStore keeps the record in <dir>/<key>.json with owner-only permissions
type FileStore struct {
	dir  string
	key  string
	lock sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir, appName string) (*FileStore, error) {
	if appName == "" {
		return nil, errors.New("[NewFileStore] application name is required")
	}
	if strings.ContainsAny(appName, `/\`) || appName == "." || appName == ".." {
		return nil, errors.Errorf("[NewFileStore] application name %q is not a valid file name", appName)
	}
	return &FileStore{
		dir: dir,
		key: StorageKey(appName),
	}, nil
}

func (f *FileStore) Key() string {
	return f.key
}

func (f *FileStore) Path() string {
	return filepath.Join(f.dir, f.key+".json")
}

func (f *FileStore) Load() (session.Session, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	data, err := os.ReadFile(f.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", f.Path()).Msg("Failed to read session file")
		}
		return session.Session{}, false
	}
	return decode(f.key, data)
}

// Save writes to a temp file in the same directory and renames it over the
// record, so readers see either the old or the new record.
func (f *FileStore) Save(s session.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return errors.Wrap(err, "[FileStore Save] failed to create directory")
	}

	tmp, err := os.CreateTemp(f.dir, f.key+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "[FileStore Save] failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore Save] failed to write session")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore Save] failed to set permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileStore Save] failed to close temp file")
	}
	if err := os.Rename(tmpName, f.Path()); err != nil {
		return fmt.Errorf("[FileStore Save] failed to replace %s: %w", f.Path(), err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := os.Remove(f.Path()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore Clear] failed to remove session")
	}
	return nil
}
