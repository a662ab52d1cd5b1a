// ABOUTME: Persisted cloud-table store backed by SQLite using modernc.org/sqlite
// ABOUTME: Typed list/dict tables with synchronous persistence on every mutation

package tables

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrTableExists indicates a create collided with an existing table name.
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound indicates the named table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrWrongType indicates a list operation on a dict table or vice versa.
	ErrWrongType = errors.New("wrong operation for table type")

	// ErrTypeMismatch indicates initial data whose shape does not match the
	// declared table type.
	ErrTypeMismatch = errors.New("initial data does not match table type")

	// ErrIndexOutOfRange indicates a list index outside [0, length).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrEntryNotFound indicates a missing dict key or list index.
	ErrEntryNotFound = errors.New("entry not found")
)

// Type discriminates the two table kinds. Fixed at creation.
type Type string

const (
	TypeList Type = "list"
	TypeDict Type = "dict"
)

// Info is a table's metadata.
type Info struct {
	Type         Type      `json:"type"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Table is the tagged union of the two table kinds. Exactly one of List or
// Dict is populated, matching Info.Type.
type Table struct {
	Name string                     `json:"name"`
	Info Info                       `json:"info"`
	List []json.RawMessage          `json:"list,omitempty"`
	Dict map[string]json.RawMessage `json:"dict,omitempty"`
}

// Data returns the table's payload in its natural JSON shape.
func (t *Table) Data() any {
	if t.Info.Type == TypeList {
		if t.List == nil {
			return []json.RawMessage{}
		}
		return t.List
	}
	if t.Dict == nil {
		return map[string]json.RawMessage{}
	}
	return t.Dict
}

// Summary is a table's metadata plus a computed size, used by list
// operations that must not expose full data.
type Summary struct {
	Name string `json:"name"`
	Info Info   `json:"info"`
	Size int    `json:"size"`
}

// Notifier receives change notifications after each successful mutation.
// table is nil when the named table was deleted.
type Notifier interface {
	NotifyTable(name string, table *Table)
}

// Store holds all cloud tables in memory and persists every mutation to a
// single SQLite file before applying it. A failed write leaves both the
// file and the in-memory state unchanged.
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	tables   map[string]*Table
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New opens (or creates) the store at the given path and rehydrates all
// tables from it. Parent directories are created if needed.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tables")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps dashboard reads from blocking on agent writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		tables: make(map[string]*Table),
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading tables: %w", err)
	}

	logger.Info("cloud table store initialized", "path", path, "tables", len(s.tables))
	return s, nil
}

// SetNotifier installs the change sink. Must be called before the store is
// shared across goroutines.
func (s *Store) SetNotifier(n Notifier) {
	s.notifier = n
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cloud_tables (
			name TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			description TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			last_modified DATETIME NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT name, type, description, data, created_at, last_modified FROM cloud_tables`)
	if err != nil {
		return fmt.Errorf("querying tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, typ, desc, data, createdAtStr, lastModifiedStr string
		if err := rows.Scan(&name, &typ, &desc, &data, &createdAtStr, &lastModifiedStr); err != nil {
			return fmt.Errorf("scanning table row: %w", err)
		}

		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return fmt.Errorf("parsing created_at for %q: %w", name, err)
		}
		lastModified, err := time.Parse(time.RFC3339, lastModifiedStr)
		if err != nil {
			return fmt.Errorf("parsing last_modified for %q: %w", name, err)
		}

		tbl := &Table{
			Name: name,
			Info: Info{
				Type:         Type(typ),
				Description:  desc,
				CreatedAt:    createdAt,
				LastModified: lastModified,
			},
		}
		switch tbl.Info.Type {
		case TypeList:
			if err := json.Unmarshal([]byte(data), &tbl.List); err != nil {
				return fmt.Errorf("decoding list table %q: %w", name, err)
			}
		case TypeDict:
			if err := json.Unmarshal([]byte(data), &tbl.Dict); err != nil {
				return fmt.Errorf("decoding dict table %q: %w", name, err)
			}
		default:
			return fmt.Errorf("table %q has unknown type %q", name, typ)
		}
		s.tables[name] = tbl
	}
	return rows.Err()
}

// Create makes a new table. initialData may be nil for the empty value of
// the type; if present its shape must match the declared type.
func (s *Store) Create(name string, typ Type, description string, initialData json.RawMessage) error {
	if typ != TypeList && typ != TypeDict {
		return fmt.Errorf("%w: unknown type %q", ErrTypeMismatch, typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[name]; exists {
		return fmt.Errorf("%w: %s", ErrTableExists, name)
	}

	now := s.now()
	tbl := &Table{
		Name: name,
		Info: Info{Type: typ, Description: description, CreatedAt: now, LastModified: now},
	}
	switch typ {
	case TypeList:
		tbl.List = []json.RawMessage{}
		if len(initialData) > 0 {
			if err := json.Unmarshal(initialData, &tbl.List); err != nil {
				return fmt.Errorf("%w: expected a JSON array", ErrTypeMismatch)
			}
		}
	case TypeDict:
		tbl.Dict = map[string]json.RawMessage{}
		if len(initialData) > 0 {
			if err := json.Unmarshal(initialData, &tbl.Dict); err != nil {
				return fmt.Errorf("%w: expected a JSON object", ErrTypeMismatch)
			}
		}
	}

	data, err := encodeData(tbl)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO cloud_tables (name, type, description, data, created_at, last_modified) VALUES (?, ?, ?, ?, ?, ?)`,
		name, string(typ), description, data,
		now.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("persisting table %q: %w", name, err)
	}

	s.tables[name] = tbl
	s.logger.Info("table created", "name", name, "type", typ)
	s.notifyLocked(name)
	return nil
}

// Append adds a value to the end of a list table.
func (s *Store) Append(name string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, err := s.getLocked(name, TypeList)
	if err != nil {
		return err
	}

	next := make([]json.RawMessage, len(tbl.List), len(tbl.List)+1)
	copy(next, tbl.List)
	next = append(next, value)

	if err := s.persistListLocked(tbl, next); err != nil {
		return err
	}
	s.notifyLocked(name)
	return nil
}

// Replace overwrites the value at the given index of a list table.
func (s *Store) Replace(name string, index int, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, err := s.getLocked(name, TypeList)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(tbl.List) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(tbl.List))
	}

	next := make([]json.RawMessage, len(tbl.List))
	copy(next, tbl.List)
	next[index] = value

	if err := s.persistListLocked(tbl, next); err != nil {
		return err
	}
	s.notifyLocked(name)
	return nil
}

// Set stores a value under a key in a dict table, overwriting any previous
// value for that key.
func (s *Store) Set(name, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, err := s.getLocked(name, TypeDict)
	if err != nil {
		return err
	}

	next := make(map[string]json.RawMessage, len(tbl.Dict)+1)
	for k, v := range tbl.Dict {
		next[k] = v
	}
	next[key] = value

	if err := s.persistDictLocked(tbl, next); err != nil {
		return err
	}
	s.notifyLocked(name)
	return nil
}

// Read returns a copy of the full table.
func (s *Store) Read(name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tbl, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return copyTable(tbl), nil
}

// ReadEntry returns a single value: the dict value under key, or for list
// tables the element at the index key parses to.
func (s *Store) ReadEntry(name, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tbl, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	switch tbl.Info.Type {
	case TypeDict:
		v, ok := tbl.Dict[key]
		if !ok {
			return nil, fmt.Errorf("%w: key %q", ErrEntryNotFound, key)
		}
		return v, nil
	default:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: list index %q", ErrEntryNotFound, key)
		}
		if idx < 0 || idx >= len(tbl.List) {
			return nil, fmt.Errorf("%w: index %d", ErrEntryNotFound, idx)
		}
		return tbl.List[idx], nil
	}
}

// List returns each table's metadata and size, sorted by name, without
// exposing table data.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.tables))
	for name, tbl := range s.tables {
		size := len(tbl.List)
		if tbl.Info.Type == TypeDict {
			size = len(tbl.Dict)
		}
		out = append(out, Summary{Name: name, Info: tbl.Info, Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes a table from the store and from disk.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	if _, err := s.db.Exec(`DELETE FROM cloud_tables WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting table %q: %w", name, err)
	}

	delete(s.tables, name)
	s.logger.Info("table deleted", "name", name)
	if s.notifier != nil {
		s.notifier.NotifyTable(name, nil)
	}
	return nil
}

// Clear resets a table's data to the empty value of its type.
func (s *Store) Clear(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	if tbl.Info.Type == TypeList {
		if err := s.persistListLocked(tbl, []json.RawMessage{}); err != nil {
			return err
		}
	} else {
		if err := s.persistDictLocked(tbl, map[string]json.RawMessage{}); err != nil {
			return err
		}
	}
	s.notifyLocked(name)
	return nil
}

// getLocked fetches a table and validates its type. Caller holds the lock.
func (s *Store) getLocked(name string, want Type) (*Table, error) {
	tbl, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if tbl.Info.Type != want {
		return nil, fmt.Errorf("%w: %s is a %s table", ErrWrongType, name, tbl.Info.Type)
	}
	return tbl, nil
}

// persistListLocked writes the candidate data to disk, then commits it to
// memory. On write failure the in-memory table is untouched.
func (s *Store) persistListLocked(tbl *Table, next []json.RawMessage) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding table %q: %w", tbl.Name, err)
	}
	now := s.now()
	if _, err := s.db.Exec(
		`UPDATE cloud_tables SET data = ?, last_modified = ? WHERE name = ?`,
		string(data), now.UTC().Format(time.RFC3339), tbl.Name,
	); err != nil {
		return fmt.Errorf("persisting table %q: %w", tbl.Name, err)
	}
	tbl.List = next
	tbl.Info.LastModified = now
	return nil
}

func (s *Store) persistDictLocked(tbl *Table, next map[string]json.RawMessage) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding table %q: %w", tbl.Name, err)
	}
	now := s.now()
	if _, err := s.db.Exec(
		`UPDATE cloud_tables SET data = ?, last_modified = ? WHERE name = ?`,
		string(data), now.UTC().Format(time.RFC3339), tbl.Name,
	); err != nil {
		return fmt.Errorf("persisting table %q: %w", tbl.Name, err)
	}
	tbl.Dict = next
	tbl.Info.LastModified = now
	return nil
}

func (s *Store) notifyLocked(name string) {
	if s.notifier == nil {
		return
	}
	if tbl, ok := s.tables[name]; ok {
		s.notifier.NotifyTable(name, copyTable(tbl))
	}
}

func encodeData(tbl *Table) (string, error) {
	var (
		data []byte
		err  error
	)
	if tbl.Info.Type == TypeList {
		data, err = json.Marshal(tbl.List)
	} else {
		data, err = json.Marshal(tbl.Dict)
	}
	if err != nil {
		return "", fmt.Errorf("encoding table %q: %w", tbl.Name, err)
	}
	return string(data), nil
}

func copyTable(tbl *Table) *Table {
	out := &Table{Name: tbl.Name, Info: tbl.Info}
	if tbl.List != nil {
		out.List = make([]json.RawMessage, len(tbl.List))
		copy(out.List, tbl.List)
	}
	if tbl.Dict != nil {
		out.Dict = make(map[string]json.RawMessage, len(tbl.Dict))
		for k, v := range tbl.Dict {
			out.Dict[k] = v
		}
	}
	return out
}
