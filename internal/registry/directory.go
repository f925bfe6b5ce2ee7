// Package registry holds the coordinator's shared mutable state: the server
// directory, the port allocator, and the registrar that mutates both on
// behalf of backends.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ojamals/mcpregd/internal/domain"
	"github.com/ojamals/mcpregd/internal/errors"
)

// Directory is the concurrency-safe in-memory map of server name to
// registration record. All mutations are serialized by a single lock; reads
// return copies so callers never observe a half-written record.
type Directory struct {
	mu      sync.RWMutex
	records map[string]*domain.ServerRecord
}

// NewDirectory creates an empty, concurrency-safe Directory.
func NewDirectory() *Directory {
	return &Directory{
		records: make(map[string]*domain.ServerRecord),
	}
}

// Upsert inserts or replaces a record, enforcing the uniqueness invariants.
// A name held by a live record is only replaced when the caller presents that
// record's lease token; a name held by an expired record may always be taken
// over. Ports must be unique across live records.
func (d *Directory) Upsert(rec *domain.ServerRecord, presentedLease string) error {
	if rec == nil {
		return fmt.Errorf("%w: record cannot be nil", errors.ErrValidation)
	}
	if strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("%w: record name cannot be empty", errors.ErrValidation)
	}
	if rec.Port <= 0 {
		return fmt.Errorf("%w: record port must be positive", errors.ErrValidation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.records[rec.Name]; ok {
		if existing.State.Live() && existing.LeaseToken != presentedLease {
			return fmt.Errorf("%w: %s", errors.ErrNameConflict, rec.Name)
		}
	}

	for name, other := range d.records {
		if name == rec.Name {
			continue
		}
		if other.State.Live() && other.Port == rec.Port {
			return fmt.Errorf("%w: port %d is held by %s", errors.ErrPortConflict, rec.Port, name)
		}
	}

	d.records[rec.Name] = rec.Clone()
	return nil
}

// Get returns a copy of the record for the given name.
// It returns a boolean to indicate whether the record was found.
func (d *Directory) Get(name string) (*domain.ServerRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[name]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// RemoveIf deletes the named record only when fn approves it. The write lock
// is held across check and delete, so a removal cannot validate against one
// record and delete its replacement. Absent records yield ErrUnknownServer;
// fn's error is returned verbatim when it rejects the record.
func (d *Directory) RemoveIf(name string, fn func(*domain.ServerRecord) error) (*domain.ServerRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownServer, name)
	}
	if err := fn(rec.Clone()); err != nil {
		return nil, err
	}
	delete(d.records, name)
	return rec, nil
}

// List returns copies of all records whose state is in states, sorted by
// name. With no states given it returns every record.
func (d *Directory) List(states ...domain.ServerState) []*domain.ServerRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*domain.ServerRecord, 0, len(d.records))
	for _, rec := range d.records {
		if len(states) > 0 && !slices.Contains(states, rec.State) {
			continue
		}
		out = append(out, rec.Clone())
	}

	slices.SortFunc(out, func(a, b *domain.ServerRecord) int {
		return strings.Compare(a.Name, b.Name)
	})

	return out
}

// Update applies fn to the named record under the directory's write lock.
// fn receives a copy; the mutation is committed only when fn returns nil, so
// a failed update never leaves a partially mutated record behind. Absent
// records yield ErrUnknownServer, letting late probe results for removed
// records be discarded instead of resurrecting them.
func (d *Directory) Update(name string, fn func(*domain.ServerRecord) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[name]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownServer, name)
	}

	updated := rec.Clone()
	if err := fn(updated); err != nil {
		return err
	}

	d.records[name] = updated
	return nil
}
