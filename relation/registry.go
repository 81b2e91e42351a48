package relation

import (
	"sort"
	"sync"
)

// Entry is a registered relation.
type Entry struct {
	Source     Table
	Name       string
	Display    string
	Descriptor Descriptor
}

// DisplayName returns the display override, or the relation name.
func (e *Entry) DisplayName() string {
	if e.Display != "" {
		return e.Display
	}
	return e.Name
}

// EntryOption configures an entry at registration.
type EntryOption func(*Entry)

// WithDisplayName sets the display name of an entry.
func WithDisplayName(display string) EntryOption {
	return func(e *Entry) {
		e.Display = display
	}
}

// Registry maps (source table, relation name) to descriptors.
// It is populated during bootstrap and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	tables  map[string]Table
	entries map[string]map[string]*Entry // key: source table name
	sealed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tables:  make(map[string]Table),
		entries: make(map[string]map[string]*Entry),
	}
}

// Register validates a copy of d and stores it under (source, name),
// replacing any previous entry with that name.
func (r *Registry) Register(source Table, name string, d Descriptor, opts ...EntryOption) error {
	source, d = source.clone(), Clone(d)
	if err := Validate(source, name, d); err != nil {
		return err
	}

	entry := &Entry{Source: source, Name: name, Descriptor: d}
	for _, opt := range opts {
		opt(entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	r.store(entry)
	return nil
}

// store indexes an entry and the tables it references. Callers hold the lock.
func (r *Registry) store(entry *Entry) {
	r.rememberTable(entry.Source)
	for _, t := range entry.Descriptor.TargetTables() {
		r.rememberTable(t)
	}
	if j, ok := entry.Descriptor.(*ThroughJunction); ok {
		r.rememberTable(j.Junction)
	}

	byName, ok := r.entries[entry.Source.Name]
	if !ok {
		byName = make(map[string]*Entry)
		r.entries[entry.Source.Name] = byName
	}
	byName[entry.Name] = entry
}

// rememberTable keeps the most informative reference seen for a table name.
func (r *Registry) rememberTable(t Table) {
	existing, ok := r.tables[t.Name]
	if !ok || (len(existing.Columns) == 0 && len(t.Columns) > 0) {
		r.tables[t.Name] = t
	}
}

// Lookup returns the descriptor registered on source under name.
func (r *Registry) Lookup(source, name string) (Descriptor, error) {
	entry, err := r.Entry(source, name)
	if err != nil {
		return nil, err
	}
	return entry.Descriptor, nil
}

// Entry returns the full registry entry for (source, name).
func (r *Registry) Entry(source, name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[source][name]
	if !ok {
		return nil, &UnknownRelationError{Table: source, Relation: name}
	}
	return entry, nil
}

// DisplayName returns the display name of a relation, or name itself when
// the relation has no override or does not exist.
func (r *Registry) DisplayName(source, name string) string {
	entry, err := r.Entry(source, name)
	if err != nil {
		return name
	}
	return entry.DisplayName()
}

// Relations returns the entries of a source table ordered by name.
func (r *Registry) Relations(source string) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName := r.entries[source]
	result := make([]*Entry, 0, len(byName))
	for _, e := range byName {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Tables returns the names of all tables referenced by registered relations, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the reference recorded for a table name.
func (r *Registry) Table(name string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[name]
	return t, ok
}

// Seal ends the bootstrap phase. Further registrations fail with ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
