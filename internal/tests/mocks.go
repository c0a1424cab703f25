package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"transit/internal/domain"
	"transit/internal/repository"
)

// ──────────────────────────────────────────────
// IN-MEMORY STORE
// ──────────────────────────────────────────────

// MemoryStore is an in-memory implementation of repository.Store. WithinTx
// holds one mutex for the whole callback, which serializes per-user
// operations the way row locks do in Postgres, and restores a snapshot when
// the callback fails so no partial mutation is observable.
type MemoryStore struct {
	mu       sync.Mutex
	trips    map[string]*domain.Trip
	accounts map[string]*domain.BalanceAccount

	// Counters for verification
	TripCreateCallCount int32
	TripUpdateCallCount int32
	AccountUpdateCount  int32

	// Error injection
	TripCreateError    error
	TripUpdateError    error
	AccountUpdateError error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:    make(map[string]*domain.Trip),
		accounts: make(map[string]*domain.BalanceAccount),
	}
}

// Trips returns a trip repository that locks per call.
func (s *MemoryStore) Trips() repository.TripRepository {
	return &memTripRepo{store: s, locking: true}
}

// Accounts returns an account repository that locks per call.
func (s *MemoryStore) Accounts() repository.AccountRepository {
	return &memAccountRepo{store: s, locking: true}
}

// WithinTx runs fn under the store mutex against non-locking repositories,
// rolling the data back if fn fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tripSnapshot := snapshotTrips(s.trips)
	accountSnapshot := snapshotAccounts(s.accounts)

	if err := fn(&memTxStore{store: s}); err != nil {
		s.trips = tripSnapshot
		s.accounts = accountSnapshot
		return err
	}

	return nil
}

// SeedAccount adds an account with the given balance.
func (s *MemoryStore) SeedAccount(account *domain.BalanceAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.UserID] = account
}

// SeedTrip adds a trip.
func (s *MemoryStore) SeedTrip(trip *domain.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[trip.ID] = trip
}

// GetTrip returns the trip for assertions.
func (s *MemoryStore) GetTrip(id string) *domain.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trip, ok := s.trips[id]; ok {
		cp := *trip
		return &cp
	}
	return nil
}

// GetAccount returns the account for assertions.
func (s *MemoryStore) GetAccount(userID string) *domain.BalanceAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account, ok := s.accounts[userID]; ok {
		cp := *account
		return &cp
	}
	return nil
}

// CountOpenTrips counts OPEN trips for a user.
func (s *MemoryStore) CountOpenTrips(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.trips {
		if t.UserID == userID && t.Status == domain.TripStatusOpen {
			count++
		}
	}
	return count
}

// memTxStore exposes the store's data without re-locking; the WithinTx
// caller already holds the mutex.
type memTxStore struct {
	store *MemoryStore
}

func (s *memTxStore) Trips() repository.TripRepository {
	return &memTripRepo{store: s.store}
}

func (s *memTxStore) Accounts() repository.AccountRepository {
	return &memAccountRepo{store: s.store}
}

func (s *memTxStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(s)
}

func snapshotTrips(trips map[string]*domain.Trip) map[string]*domain.Trip {
	snapshot := make(map[string]*domain.Trip, len(trips))
	for id, trip := range trips {
		cp := *trip
		snapshot[id] = &cp
	}
	return snapshot
}

func snapshotAccounts(accounts map[string]*domain.BalanceAccount) map[string]*domain.BalanceAccount {
	snapshot := make(map[string]*domain.BalanceAccount, len(accounts))
	for id, account := range accounts {
		cp := *account
		snapshot[id] = &cp
	}
	return snapshot
}

// ──────────────────────────────────────────────
// TRIP REPOSITORY
// ──────────────────────────────────────────────

type memTripRepo struct {
	store   *MemoryStore
	locking bool
}

func (r *memTripRepo) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memTripRepo) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&r.store.TripCreateCallCount, 1)
	if r.store.TripCreateError != nil {
		return r.store.TripCreateError
	}
	unlock := r.lock()
	defer unlock()

	// Mirrors the partial unique index on (user_id) WHERE status = 'OPEN'.
	if trip.Status == domain.TripStatusOpen {
		for _, t := range r.store.trips {
			if t.UserID == trip.UserID && t.Status == domain.TripStatusOpen {
				return repository.ErrDuplicateOpenTrip
			}
		}
	}

	cp := *trip
	r.store.trips[trip.ID] = &cp
	return nil
}

func (r *memTripRepo) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	unlock := r.lock()
	defer unlock()
	trip, ok := r.store.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *trip
	return &cp, nil
}

func (r *memTripRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	return r.GetByID(ctx, id)
}

func (r *memTripRepo) GetOpenByUserID(ctx context.Context, userID string) (*domain.Trip, error) {
	unlock := r.lock()
	defer unlock()
	for _, t := range r.store.trips {
		if t.UserID == userID && t.Status == domain.TripStatusOpen {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memTripRepo) GetOpenByUserIDForUpdate(ctx context.Context, userID string) (*domain.Trip, error) {
	return r.GetOpenByUserID(ctx, userID)
}

func (r *memTripRepo) Update(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&r.store.TripUpdateCallCount, 1)
	if r.store.TripUpdateError != nil {
		return r.store.TripUpdateError
	}
	unlock := r.lock()
	defer unlock()
	if _, ok := r.store.trips[trip.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *trip
	r.store.trips[trip.ID] = &cp
	return nil
}

func (r *memTripRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.Trip, error) {
	unlock := r.lock()
	defer unlock()
	var trips []*domain.Trip
	for _, t := range r.store.trips {
		if t.UserID == userID {
			cp := *t
			trips = append(trips, &cp)
		}
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].EntryTime.After(trips[j].EntryTime)
	})
	if len(trips) > limit {
		trips = trips[:limit]
	}
	return trips, nil
}

// ──────────────────────────────────────────────
// ACCOUNT REPOSITORY
// ──────────────────────────────────────────────

type memAccountRepo struct {
	store   *MemoryStore
	locking bool
}

func (r *memAccountRepo) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memAccountRepo) Create(ctx context.Context, account *domain.BalanceAccount) error {
	unlock := r.lock()
	defer unlock()
	cp := *account
	r.store.accounts[account.UserID] = &cp
	return nil
}

func (r *memAccountRepo) GetByUserID(ctx context.Context, userID string) (*domain.BalanceAccount, error) {
	unlock := r.lock()
	defer unlock()
	account, ok := r.store.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *memAccountRepo) GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.BalanceAccount, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *memAccountRepo) Update(ctx context.Context, account *domain.BalanceAccount) error {
	atomic.AddInt32(&r.store.AccountUpdateCount, 1)
	if r.store.AccountUpdateError != nil {
		return r.store.AccountUpdateError
	}
	unlock := r.lock()
	defer unlock()
	if _, ok := r.store.accounts[account.UserID]; !ok {
		return repository.ErrNotFound
	}
	cp := *account
	r.store.accounts[account.UserID] = &cp
	return nil
}

// Ensure MemoryStore implements repository.Store.
var _ repository.Store = (*MemoryStore)(nil)

// ──────────────────────────────────────────────
// SITE AND FARE RULE REGISTRIES
// ──────────────────────────────────────────────

// MockSiteRegistry is an in-memory implementation of repository.SiteRegistry.
type MockSiteRegistry struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Site
	byName map[string]*domain.Site

	// Error injection
	LookupError error
}

// NewMockSiteRegistry creates an empty mock site registry.
func NewMockSiteRegistry() *MockSiteRegistry {
	return &MockSiteRegistry{
		byID:   make(map[string]*domain.Site),
		byName: make(map[string]*domain.Site),
	}
}

// AddSite adds a site to the registry.
func (m *MockSiteRegistry) AddSite(site *domain.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[site.ID] = site
	m.byName[site.Name] = site
}

func (m *MockSiteRegistry) GetByName(ctx context.Context, name string) (*domain.Site, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	site, ok := m.byName[name]
	if !ok {
		return nil, nil
	}
	cp := *site
	return &cp, nil
}

func (m *MockSiteRegistry) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	site, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *site
	return &cp, nil
}

// MockFareRuleRegistry is an in-memory implementation of repository.FareRuleRegistry.
type MockFareRuleRegistry struct {
	mu    sync.RWMutex
	rules []*domain.FareRule
}

// NewMockFareRuleRegistry creates an empty mock fare rule registry.
func NewMockFareRuleRegistry() *MockFareRuleRegistry {
	return &MockFareRuleRegistry{}
}

// AddRule adds a fare rule.
func (m *MockFareRuleRegistry) AddRule(rule *domain.FareRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

func (m *MockFareRuleRegistry) GetActiveRule(ctx context.Context, originSiteID, destinationSiteID, mode string) (*domain.FareRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.Active && r.OriginSiteID == originSiteID && r.DestinationSiteID == destinationSiteID && r.Mode == mode {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

// Ensure registries implement their interfaces.
var (
	_ repository.SiteRegistry     = (*MockSiteRegistry)(nil)
	_ repository.FareRuleRegistry = (*MockFareRuleRegistry)(nil)
)

// ──────────────────────────────────────────────
// LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory per-user lock.
type MockLockStore struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  map[string]time.Duration

	AcquireCallCount int32
}

// NewMockLockStore creates an empty mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		held: make(map[string]time.Time),
		ttl:  make(map[string]time.Duration),
	}
}

func (m *MockLockStore) AcquireUserLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if acquired, ok := m.held[userID]; ok && time.Since(acquired) < m.ttl[userID] {
		return false, nil
	}
	m.held[userID] = time.Now()
	m.ttl[userID] = ttl
	return true, nil
}

func (m *MockLockStore) ReleaseUserLock(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, userID)
	delete(m.ttl, userID)
	return nil
}
