package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	interfaceDir = "interface"
	sqlDir       = "sql"
	projectFile  = "_project.json"
)

var labelPattern = regexp.MustCompile(`^[\w\-]+$`)

// Store resolves query ids to their compiled interface and SQL template.
// Implementations must be safe for concurrent use. Returned interfaces are
// shared and must be treated as read-only.
type Store interface {
	Interface(id string) (*Interface, error)
	SQL(id string) (string, error)
}

// NotFoundError is returned when a query id is not in the store.
type NotFoundError struct {
	ID   string
	What string
}

func (e *NotFoundError) Error() string {
	what := e.What
	if what == "" {
		what = "query"
	}
	return fmt.Sprintf("cannot load %s %q: not present in the compiled query set", what, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

type snapshot struct {
	ifaces   map[string]*Interface
	sql      map[string]string
	loadedAt time.Time
}

func (s *snapshot) iface(id string) (*Interface, error) {
	i, ok := s.ifaces[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return i, nil
}

func (s *snapshot) template(id string) (string, error) {
	q, ok := s.sql[id]
	if !ok {
		return "", &NotFoundError{ID: id, What: "sql for query"}
	}
	return q, nil
}

// DirStore serves a compiled query directory.
type DirStore struct {
	dir   string
	label string
	snap  atomic.Pointer[snapshot]
}

// DirOption configures a DirStore.
type DirOption func(*DirStore)

// WithLabel selects the labelled query set "<dir>-<label>".
func WithLabel(label string) DirOption {
	return func(s *DirStore) { s.label = label }
}

// ValidLabel reports whether label can name a query set.
func ValidLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// OpenDir loads the compiled directory dir.
func OpenDir(dir string, opts ...DirOption) (*DirStore, error) {
	s := &DirStore{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	if s.label != "" && !ValidLabel(s.label) {
		return nil, fmt.Errorf("invalid query set label %q", s.label)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the directory actually served, including the label suffix.
func (s *DirStore) Path() string {
	if s.label == "" {
		return s.dir
	}
	return s.dir + "-" + s.label
}

// Reload reads the directory into a new snapshot and swaps it in. On error
// the previous snapshot stays active.
func (s *DirStore) Reload() error {
	snap, err := loadSnapshot(s.Path())
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

// LoadedAt returns when the active snapshot was read.
func (s *DirStore) LoadedAt() time.Time {
	return s.snap.Load().loadedAt
}

// Interface implements Store.
func (s *DirStore) Interface(id string) (*Interface, error) {
	return s.snap.Load().iface(id)
}

// SQL implements Store.
func (s *DirStore) SQL(id string) (string, error) {
	return s.snap.Load().template(id)
}

// IDs lists the query ids of the active snapshot, sorted.
func (s *DirStore) IDs() []string {
	return sortedIDs(s.snap.Load().ifaces)
}

func loadSnapshot(path string) (*snapshot, error) {
	snap := &snapshot{
		ifaces:   make(map[string]*Interface),
		sql:      make(map[string]string),
		loadedAt: time.Now(),
	}

	ifaceFiles, err := filepath.Glob(filepath.Join(path, interfaceDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	if len(ifaceFiles) == 0 {
		if _, statErr := os.Stat(filepath.Join(path, interfaceDir)); statErr != nil {
			return nil, fmt.Errorf("failed to open compiled query set %s: %w", path, statErr)
		}
	}

	for _, file := range ifaceFiles {
		base := filepath.Base(file)
		if base == projectFile {
			continue
		}
		id := strings.TrimSuffix(base, ".json")
		iface, err := readInterface(file)
		if err != nil {
			return nil, err
		}
		iface.ID = id
		if err := iface.Validate(); err != nil {
			return nil, err
		}
		snap.ifaces[id] = iface
	}

	sqlFiles, err := filepath.Glob(filepath.Join(path, sqlDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sql files: %w", err)
	}
	for _, file := range sqlFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		snap.sql[strings.TrimSuffix(filepath.Base(file), ".sql")] = string(data)
	}
	return snap, nil
}

func readInterface(file string) (*Interface, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	iface, err := ParseInterface(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing JSON of %s: %w", file, err)
	}
	return iface, nil
}

// ParseInterface decodes an interface file. Raw line breaks and tabs are
// treated as spaces so hand-edited files with multi-line strings load.
func ParseInterface(data []byte) (*Interface, error) {
	cleaned := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(string(data))
	if strings.TrimSpace(cleaned) == "" {
		return nil, errors.New("file is empty")
	}
	var iface Interface
	if err := iface.UnmarshalJSON([]byte(cleaned)); err != nil {
		return nil, err
	}
	return &iface, nil
}

// MemStore is an in-memory Store. Entries are replaced whole under a lock.
type MemStore struct {
	mu     sync.RWMutex
	ifaces map[string]*Interface
	sql    map[string]string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		ifaces: make(map[string]*Interface),
		sql:    make(map[string]string),
	}
}

// Put registers a query. sql may be empty for aliases.
func (m *MemStore) Put(id string, iface *Interface, sql string) error {
	if iface == nil {
		return fmt.Errorf("query %s: nil interface", id)
	}
	cp := *iface
	cp.ID = id
	if cp.Operation == "" {
		cp.Operation = OpRead
	}
	if err := cp.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ifaces[id] = &cp
	if sql != "" {
		m.sql[id] = sql
	} else {
		delete(m.sql, id)
	}
	return nil
}

// Interface implements Store.
func (m *MemStore) Interface(id string) (*Interface, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.ifaces[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return i, nil
}

// SQL implements Store.
func (m *MemStore) SQL(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.sql[id]
	if !ok {
		return "", &NotFoundError{ID: id, What: "sql for query"}
	}
	return q, nil
}

// IDs lists the registered query ids, sorted.
func (m *MemStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedIDs(m.ifaces)
}

func sortedIDs(m map[string]*Interface) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
