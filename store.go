package fab

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store type names reported by Store.Type
const (
	MemoryStoreType = "MemoryStore"
	LocalStoreType  = "LocalStore"
)

const dirPermissionBits = 0755

// ErrNotfound is wrapped by Store.Get for keys that were never put
var ErrNotfound = errors.New("not found")

// Store is a key/value store of array documents and chunks. Keys are
// slash separated logical paths such as "run/level0/.zarray".
type Store interface {
	// Get opens the value at key. Missing keys return an error wrapping
	// ErrNotfound.
	Get(key string) (io.ReadCloser, error)
	// Put replaces the value at key with the contents of val
	Put(key string, val io.Reader) error
	// Type names the store implementation
	Type() string
}

// MemoryStore keeps values in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}}
}

// Type implements Store
func (s *MemoryStore) Type() string { return MemoryStoreType }

// Get implements Store. The returned reader sees the value as of the call.
func (s *MemoryStore) Get(key string) (io.ReadCloser, error) {
	s.mu.Lock()
	v, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotfound, key)
	}
	return io.NopCloser(bytes.NewReader(v)), nil
}

// Put implements Store
func (s *MemoryStore) Put(key string, val io.Reader) error {
	v, err := io.ReadAll(val)
	if err != nil {
		return fmt.Errorf("putting %s: %w", key, err)
	}
	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
	return nil
}

// Keys lists stored keys with the given prefix in sorted order
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// LocalStore maps keys onto files below a base directory
type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore returns a LocalStore rooted at base, creating the
// directory if needed
func NewLocalStore(base string) (*LocalStore, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, dirPermissionBits); err != nil {
		return nil, err
	}
	return &LocalStore{base: abs}, nil
}

// Type implements Store
func (s *LocalStore) Type() string { return LocalStoreType }

func (s *LocalStore) filename(key string) string {
	return filepath.Join(s.base, filepath.FromSlash(key))
}

// Get implements Store. The caller closes the returned file.
func (s *LocalStore) Get(key string) (io.ReadCloser, error) {
	f, err := os.Open(s.filename(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotfound, key)
	}
	return f, err
}

// Put implements Store, creating parent directories as needed. A val
// that is also an io.Closer is closed once copied.
func (s *LocalStore) Put(key string, val io.Reader) (err error) {
	name := s.filename(key)
	if err := os.MkdirAll(filepath.Dir(name), dirPermissionBits); err != nil {
		return err
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(f, val); err != nil {
		return fmt.Errorf("putting %s: %w", key, err)
	}
	if c, ok := val.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
