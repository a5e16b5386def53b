// Package store holds the client-side state for one unicorn collection:
// the cached records, busy and error flags, and the sort and page settings
// the derived views are computed from.
package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"golang.org/x/text/language"

	"github.com/hpungsan/unicorns/internal/errors"
	"github.com/hpungsan/unicorns/internal/logger"
	"github.com/hpungsan/unicorns/internal/unicorn"
)

// RemoteStore is the CRUD backend the container synchronizes with.
// *remote.Client implements it.
type RemoteStore interface {
	List(ctx context.Context) ([]unicorn.Unicorn, error)
	Create(ctx context.Context, u unicorn.Unicorn) (unicorn.Unicorn, error)
	Replace(ctx context.Context, id string, u unicorn.Unicorn) error
	Remove(ctx context.Context, id string) error
}

// Store is the record state container. The remote collection is the source
// of truth: every successful mutation is followed by a full Refresh, and
// records are never edited locally.
//
// The mutex only protects field access. It is never held across a remote
// call, so actions interleave freely and the last write wins remotely.
type Store struct {
	remote RemoteStore
	log    logger.Logger
	lang   language.Tag

	mu          sync.RWMutex
	records     []unicorn.Unicorn
	loaded      bool
	inflight    int
	err         string
	currentPage int
	sortField   SortField
	sortOrder   SortOrder
	creating    bool
	editing     bool
	deleting    map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for action failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// WithLanguage sets the collation language for string sorts (default English).
func WithLanguage(tag language.Tag) Option {
	return func(s *Store) {
		s.lang = tag
	}
}

// New creates an empty container on page 1, sorted by name ascending.
func New(remote RemoteStore, opts ...Option) *Store {
	s := &Store{
		remote:      remote,
		log:         logger.GetDefault(),
		lang:        language.English,
		records:     []unicorn.Unicorn{},
		currentPage: 1,
		sortField:   SortByName,
		sortOrder:   Asc,
		deleting:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh replaces the cached records with the remote collection.
// On failure the stale records stay visible and the error message is kept
// in Err(); the error is also returned for callers that need an exit status.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	items, err := s.remote.List(ctx)
	if err != nil {
		msg := errors.Message(err)
		if errors.Is(err, errors.ErrRemote) {
			msg = errors.MsgFetchFailed
		}
		s.fail("refresh", msg)
		return err
	}

	if items == nil {
		items = []unicorn.Unicorn{}
	}

	s.mu.Lock()
	s.records = items
	s.loaded = true
	s.err = ""
	s.mu.Unlock()
	return nil
}

// Save creates u when it has no ID and replaces it otherwise, then
// resynchronizes. It reports whether the write succeeded; a failed follow-up
// refresh is reported through Err() only.
func (s *Store) Save(ctx context.Context, u unicorn.Unicorn) bool {
	update := u.Saved()

	s.mu.Lock()
	s.creating = !update
	s.editing = update
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.creating = false
		s.editing = false
		s.mu.Unlock()
	}()

	payload := u.Payload()

	var err error
	if update {
		err = s.remote.Replace(ctx, u.ID, payload)
	} else {
		_, err = s.remote.Create(ctx, payload)
	}
	if err != nil {
		s.fail("save", errors.Message(err))
		return false
	}

	_ = s.Refresh(ctx)
	return true
}

// Delete removes the record with the given id, then resynchronizes.
// Deleting(id) is true for exactly the duration of the call.
func (s *Store) Delete(ctx context.Context, id string) bool {
	if err := s.remove(ctx, id); err != nil {
		return false
	}
	_ = s.Refresh(ctx)
	return true
}

// remove issues one remote delete while flagging id as busy.
func (s *Store) remove(ctx context.Context, id string) error {
	s.setDeleting(id, true)
	defer s.setDeleting(id, false)

	if err := s.remote.Remove(ctx, id); err != nil {
		s.fail("delete", errors.Message(err))
		return err
	}
	return nil
}

func (s *Store) setDeleting(id string, v bool) {
	s.mu.Lock()
	s.deleting[id] = v
	s.mu.Unlock()
}

// SetSort toggles the order when field is already the sort key and otherwise
// switches to field in ascending order. Unknown fields are ignored.
func (s *Store) SetSort(field SortField) {
	if !field.Valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if field == s.sortField {
		s.sortOrder = s.sortOrder.Toggle()
		return
	}
	s.sortField = field
	s.sortOrder = Asc
}

// SortBy sets field and order directly, for callers that name both at once.
// Unknown fields are ignored; an unknown order means ascending.
func (s *Store) SortBy(field SortField, order SortOrder) {
	if !field.Valid() {
		return
	}
	if order != Desc {
		order = Asc
	}

	s.mu.Lock()
	s.sortField = field
	s.sortOrder = order
	s.mu.Unlock()
}

// SetPage stores page as given. It is not checked against TotalPages.
func (s *Store) SetPage(page int) {
	s.mu.Lock()
	s.currentPage = page
	s.mu.Unlock()
}

// fail records msg as the current error.
func (s *Store) fail(op, msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
	s.log.Warn("unicorn action failed", "op", op, "error", msg)
}

// Records returns a copy of the cached records in remote order.
func (s *Store) Records() []unicorn.Unicorn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Find returns the cached record with the given id.
func (s *Store) Find(id string) (unicorn.Unicorn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.records {
		if u.ID == id {
			return u, true
		}
	}
	return unicorn.Unicorn{}, false
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Loaded reports whether any fetch has succeeded yet.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Err returns the last failure message, or "".
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

func (s *Store) SortField() SortField {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortField
}

func (s *Store) SortOrder() SortOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortOrder
}

// Creating reports whether a create is in flight.
func (s *Store) Creating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creating
}

// Editing reports whether an update is in flight.
func (s *Store) Editing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editing
}

// Deleting reports whether a delete for id is in flight.
func (s *Store) Deleting(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleting[id]
}

// Sorted returns a sorted copy of the records.
func (s *Store) Sorted() []unicorn.Unicorn {
	s.mu.RLock()
	records, field, order := slices.Clone(s.records), s.sortField, s.sortOrder
	s.mu.RUnlock()
	return sortRecords(records, field, order, s.lang)
}

// Paginated returns the current page of the sorted records. Records, sort
// and page are read under one lock so the page never mixes two states.
func (s *Store) Paginated() []unicorn.Unicorn {
	s.mu.RLock()
	records, field, order, page := slices.Clone(s.records), s.sortField, s.sortOrder, s.currentPage
	s.mu.RUnlock()
	return paginate(sortRecords(records, field, order, s.lang), page)
}

// TotalPages is the number of pages needed for all records.
func (s *Store) TotalPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalPages(len(s.records))
}

// HasRecords reports whether the cache holds any records.
func (s *Store) HasRecords() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) > 0
}

// State is a consistent copy of the container, base and derived values alike.
type State struct {
	Records     []unicorn.Unicorn `json:"records"`
	Page        []unicorn.Unicorn `json:"page"`
	CurrentPage int               `json:"current_page"`
	TotalPages  int               `json:"total_pages"`
	HasRecords  bool              `json:"has_records"`
	SortField   SortField         `json:"sort_field"`
	SortOrder   SortOrder         `json:"sort_order"`
	Loading     bool              `json:"loading"`
	Loaded      bool              `json:"loaded"`
	Error       string            `json:"error,omitempty"`
	Creating    bool              `json:"creating"`
	Editing     bool              `json:"editing"`
	Deleting    map[string]bool   `json:"deleting,omitempty"`
}

// Snapshot returns the container state taken under a single lock.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	st := State{
		Records:     slices.Clone(s.records),
		CurrentPage: s.currentPage,
		TotalPages:  totalPages(len(s.records)),
		HasRecords:  len(s.records) > 0,
		SortField:   s.sortField,
		SortOrder:   s.sortOrder,
		Loading:     s.inflight > 0,
		Loaded:      s.loaded,
		Error:       s.err,
		Creating:    s.creating,
		Editing:     s.editing,
		Deleting:    maps.Clone(s.deleting),
	}
	s.mu.RUnlock()

	st.Page = paginate(sortRecords(slices.Clone(st.Records), st.SortField, st.SortOrder, s.lang), st.CurrentPage)
	return st
}
