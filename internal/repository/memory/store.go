// Package memory is an in-process repository.Store used by tests and by the
// memory database driver. Transactions serialize on one lock and roll back by
// restoring a snapshot.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/repository"
)

type Option func(*Store)

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	state *state
}

type state struct {
	seq            int64
	order          map[string]int64
	accounts       map[string]models.Account
	availability   map[string]map[int64]models.Availability
	requests       map[string]models.Request
	matches        map[string]models.Match
	matchByRequest map[string]string
	notifications  []models.Notification
}

func newState() *state {
	return &state{
		order:          map[string]int64{},
		accounts:       map[string]models.Account{},
		availability:   map[string]map[int64]models.Availability{},
		requests:       map[string]models.Request{},
		matches:        map[string]models.Match{},
		matchByRequest: map[string]string{},
	}
}

func (st *state) clone() *state {
	c := newState()
	c.seq = st.seq
	for k, v := range st.order {
		c.order[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for host, windows := range st.availability {
		cw := make(map[int64]models.Availability, len(windows))
		for k, v := range windows {
			cw[k] = v
		}
		c.availability[host] = cw
	}
	for k, v := range st.requests {
		c.requests[k] = v
	}
	for k, v := range st.matches {
		c.matches[k] = v
	}
	for k, v := range st.matchByRequest {
		c.matchByRequest[k] = v
	}
	c.notifications = append([]models.Notification(nil), st.notifications...)
	return c
}

func (st *state) nextID(id string) string {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	st.seq++
	st.order[id] = st.seq
	return id
}

func New(opts ...Option) *Store {
	s := &Store{now: func() time.Time { return time.Now().UTC() }, state: newState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// view is the Store handed to repositories. Outside a transaction every call
// takes the store lock; inside one the lock is already held.
type view struct {
	s      *Store
	locked bool
}

func (v view) lock() func() {
	if v.locked {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func (s *Store) root() view { return view{s: s} }

func (s *Store) Accounts() repository.AccountRepository           { return accounts{s.root()} }
func (s *Store) Availability() repository.AvailabilityRepository { return availability{s.root()} }
func (s *Store) Requests() repository.RequestRepository           { return requests{s.root()} }
func (s *Store) Matches() repository.MatchRepository              { return matches{s.root()} }
func (s *Store) Notifications() repository.NotificationRepository { return notifications{s.root()} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(txStore{view{s: s, locked: true}}); err != nil {
		s.state = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

type txStore struct{ v view }

func (t txStore) Accounts() repository.AccountRepository           { return accounts{t.v} }
func (t txStore) Availability() repository.AvailabilityRepository { return availability{t.v} }
func (t txStore) Requests() repository.RequestRepository           { return requests{t.v} }
func (t txStore) Matches() repository.MatchRepository              { return matches{t.v} }
func (t txStore) Notifications() repository.NotificationRepository { return notifications{t.v} }

func (t txStore) WithTx(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

type accounts struct{ v view }

func (r accounts) CreateAccount(_ context.Context, a models.Account) (models.Account, error) {
	defer r.v.lock()()
	st := r.v.s.state
	a.Phone = strings.TrimSpace(a.Phone)
	for _, existing := range st.accounts {
		if existing.Phone == a.Phone {
			return models.Account{}, apperrors.Conflict("create account: phone %s already registered", a.Phone)
		}
	}
	if _, ok := st.accounts[a.ID]; ok && a.ID != "" {
		return models.Account{}, apperrors.Conflict("create account: id %s taken", a.ID)
	}
	a.ID = st.nextID(a.ID)
	a.Name = strings.TrimSpace(a.Name)
	a.Location = strings.TrimSpace(a.Location)
	a.CreatedAt = r.v.s.now()
	a.UpdatedAt = a.CreatedAt
	st.accounts[a.ID] = a
	return a, nil
}

func (r accounts) GetAccount(_ context.Context, id string) (models.Account, error) {
	defer r.v.lock()()
	a, ok := r.v.s.state.accounts[id]
	if !ok {
		return models.Account{}, apperrors.NotFound("account %s", id)
	}
	return a, nil
}

func (r accounts) GetAccountByPhone(_ context.Context, phone string) (models.Account, error) {
	defer r.v.lock()()
	phone = strings.TrimSpace(phone)
	for _, a := range r.v.s.state.accounts {
		if a.Phone == phone {
			return a, nil
		}
	}
	return models.Account{}, apperrors.NotFound("account with phone %s", phone)
}

func (r accounts) ListAccounts(_ context.Context, role models.Role) ([]models.Account, error) {
	defer r.v.lock()()
	var out []models.Account
	for _, a := range r.v.s.state.accounts {
		if a.Role == role {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r accounts) UpdateProfile(_ context.Context, id string, patch models.ProfilePatch) (models.Account, error) {
	defer r.v.lock()()
	st := r.v.s.state
	a, ok := st.accounts[id]
	if !ok {
		return models.Account{}, apperrors.NotFound("account %s", id)
	}
	if patch.Name != nil {
		a.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.AboutMe != nil {
		a.AboutMe = strings.TrimSpace(*patch.AboutMe)
	}
	if patch.Preferences != nil {
		a.Preferences = strings.TrimSpace(*patch.Preferences)
	}
	if patch.Location != nil {
		a.Location = strings.TrimSpace(*patch.Location)
	}
	a.UpdatedAt = r.v.s.now()
	st.accounts[id] = a
	return a, nil
}

type availability struct{ v view }

func (r availability) UpsertAvailability(_ context.Context, a models.Availability) (models.Availability, error) {
	defer r.v.lock()()
	st := r.v.s.state
	if _, ok := st.accounts[a.HostID]; !ok {
		return models.Availability{}, apperrors.NotFound("account %s", a.HostID)
	}
	windows, ok := st.availability[a.HostID]
	if !ok {
		windows = map[int64]models.Availability{}
		st.availability[a.HostID] = windows
	}
	a.WindowStart = a.WindowStart.UTC()
	a.UpdatedAt = r.v.s.now()
	windows[a.WindowStart.Unix()] = a
	return a, nil
}

func (r availability) GetLatestAvailability(_ context.Context, hostID string, asOf time.Time) (models.Availability, error) {
	defer r.v.lock()()
	latest, ok := r.v.s.state.latest(hostID, asOf)
	if !ok {
		return models.Availability{}, apperrors.NotFound("availability for %s", hostID)
	}
	return latest, nil
}

func (st *state) latest(hostID string, asOf time.Time) (models.Availability, bool) {
	var (
		latest models.Availability
		found  bool
	)
	for _, a := range st.availability[hostID] {
		if a.WindowStart.After(asOf) {
			continue
		}
		if !found || a.WindowStart.After(latest.WindowStart) {
			latest, found = a, true
		}
	}
	return latest, found
}

func (r availability) ListEligibleHosts(_ context.Context, location string, minCapacity int, asOf time.Time) ([]models.HostCandidate, error) {
	defer r.v.lock()()
	st := r.v.s.state
	var out []models.HostCandidate
	for _, host := range st.accounts {
		if host.Role != models.RoleHost || host.Location != location {
			continue
		}
		latest, ok := st.latest(host.ID, asOf)
		if !ok || !latest.Eligible(minCapacity) {
			continue
		}
		out = append(out, models.HostCandidate{Host: host, Availability: latest})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host.ID < out[j].Host.ID })
	return out, nil
}

type requests struct{ v view }

func (r requests) CreateRequest(_ context.Context, req models.Request) (models.Request, error) {
	defer r.v.lock()()
	st := r.v.s.state
	if _, ok := st.accounts[req.StudentID]; !ok {
		return models.Request{}, apperrors.NotFound("account %s", req.StudentID)
	}
	req.ID = st.nextID(req.ID)
	req.Location = strings.TrimSpace(req.Location)
	req.Status = models.RequestPending
	req.CreatedAt = r.v.s.now()
	req.UpdatedAt = req.CreatedAt
	st.requests[req.ID] = req
	return req, nil
}

func (r requests) GetRequest(_ context.Context, id string) (models.Request, error) {
	defer r.v.lock()()
	req, ok := r.v.s.state.requests[id]
	if !ok {
		return models.Request{}, apperrors.NotFound("request %s", id)
	}
	return req, nil
}

func (r requests) ListRequestsByStudent(_ context.Context, studentID string) ([]models.Request, error) {
	defer r.v.lock()()
	st := r.v.s.state
	out := st.filterRequests(func(req models.Request) bool { return req.StudentID == studentID })
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r requests) ListPendingRequests(_ context.Context) ([]models.Request, error) {
	defer r.v.lock()()
	return r.v.s.state.filterRequests(func(req models.Request) bool { return req.Status == models.RequestPending }), nil
}

// filterRequests returns matching requests oldest first.
func (st *state) filterRequests(keep func(models.Request) bool) []models.Request {
	var out []models.Request
	for _, req := range st.requests {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return st.order[out[i].ID] < st.order[out[j].ID]
	})
	return out
}

func (r requests) MarkRequestMatched(_ context.Context, id string) error {
	defer r.v.lock()()
	st := r.v.s.state
	req, ok := st.requests[id]
	if !ok {
		return apperrors.NotFound("request %s", id)
	}
	if req.Status != models.RequestPending {
		return apperrors.Conflict("request %s is no longer pending", id)
	}
	req.Status = models.RequestMatched
	req.UpdatedAt = r.v.s.now()
	st.requests[id] = req
	return nil
}

func (r requests) CancelRequest(_ context.Context, id string) (models.Request, error) {
	defer r.v.lock()()
	st := r.v.s.state
	req, ok := st.requests[id]
	if !ok {
		return models.Request{}, apperrors.NotFound("request %s", id)
	}
	if req.Status != models.RequestPending {
		return models.Request{}, apperrors.InvalidState("request %s is %s", id, req.Status)
	}
	req.Status = models.RequestCancelled
	req.UpdatedAt = r.v.s.now()
	st.requests[id] = req
	return req, nil
}

type matches struct{ v view }

func (r matches) CreateMatch(_ context.Context, requestID, hostID string, createdAt time.Time) (models.Match, error) {
	defer r.v.lock()()
	st := r.v.s.state
	if _, ok := st.matchByRequest[requestID]; ok {
		return models.Match{}, apperrors.Conflict("match for request %s: matches_request_id_key", requestID)
	}
	if _, ok := st.requests[requestID]; !ok {
		return models.Match{}, apperrors.NotFound("request %s", requestID)
	}
	if _, ok := st.accounts[hostID]; !ok {
		return models.Match{}, apperrors.NotFound("account %s", hostID)
	}
	m := models.Match{
		ID:        st.nextID(""),
		RequestID: requestID,
		HostID:    hostID,
		Status:    models.MatchAwaiting,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	st.matches[m.ID] = m
	st.matchByRequest[requestID] = m.ID
	return m, nil
}

func (r matches) GetMatch(_ context.Context, id string) (models.Match, error) {
	defer r.v.lock()()
	m, ok := r.v.s.state.matches[id]
	if !ok {
		return models.Match{}, apperrors.NotFound("match %s", id)
	}
	return m, nil
}

func (r matches) GetMatchByRequest(_ context.Context, requestID string) (models.Match, error) {
	defer r.v.lock()()
	st := r.v.s.state
	id, ok := st.matchByRequest[requestID]
	if !ok {
		return models.Match{}, apperrors.NotFound("match for request %s", requestID)
	}
	return st.matches[id], nil
}

func (r matches) Confirm(_ context.Context, id string, party models.Party) (models.Match, bool, error) {
	defer r.v.lock()()
	st := r.v.s.state
	m, ok := st.matches[id]
	if !ok {
		return models.Match{}, false, apperrors.NotFound("match %s", id)
	}
	switch m.Status {
	case models.MatchExpired:
		return models.Match{}, false, apperrors.InvalidState("match %s has expired", id)
	case models.MatchConfirmed:
		return m, false, nil
	}
	switch party {
	case models.PartyHost:
		m.HostConfirmed = true
	case models.PartyStudent:
		m.StudentConfirmed = true
	default:
		return models.Match{}, false, apperrors.Validation("unknown party %q", party)
	}
	if m.BothConfirmed() {
		m.Status = models.MatchConfirmed
	}
	m.UpdatedAt = r.v.s.now()
	st.matches[id] = m
	return m, m.Status == models.MatchConfirmed, nil
}

func (r matches) ExpireStale(_ context.Context, cutoff time.Time) ([]models.Match, error) {
	defer r.v.lock()()
	st := r.v.s.state
	var expired []models.Match
	for id, m := range st.matches {
		if m.Status != models.MatchAwaiting || m.BothConfirmed() || !m.CreatedAt.Before(cutoff) {
			continue
		}
		m.Status = models.MatchExpired
		m.UpdatedAt = r.v.s.now()
		st.matches[id] = m
		expired = append(expired, m)
	}
	sort.Slice(expired, func(i, j int) bool { return st.order[expired[i].ID] < st.order[expired[j].ID] })
	return expired, nil
}

type notifications struct{ v view }

func (r notifications) Create(_ context.Context, params repository.CreateNotificationParams) (models.Notification, error) {
	defer r.v.lock()()
	st := r.v.s.state
	n := models.Notification{
		ID:        st.nextID(""),
		AccountID: params.AccountID,
		Address:   strings.TrimSpace(params.Address),
		EventType: params.Event,
		Message:   params.Message,
		MatchID:   params.MatchID,
		Status:    models.NotificationPending,
		CreatedAt: r.v.s.now(),
	}
	st.notifications = append(st.notifications, n)
	return n, nil
}

func (r notifications) UpdateStatus(_ context.Context, id string, status models.NotificationStatus, reason string) error {
	defer r.v.lock()()
	st := r.v.s.state
	for i := range st.notifications {
		n := &st.notifications[i]
		if n.ID != id {
			continue
		}
		n.Status = status
		if reason != "" {
			n.Error = &reason
		}
		if status == models.NotificationSent {
			t := r.v.s.now()
			n.SentAt = &t
		}
		return nil
	}
	return apperrors.NotFound("notification %s", id)
}

func (r notifications) ListRecent(_ context.Context, accountID string, limit int) ([]models.Notification, error) {
	defer r.v.lock()()
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var out []models.Notification
	all := r.v.s.state.notifications
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].AccountID != nil && *all[i].AccountID == accountID {
			out = append(out, all[i])
		}
	}
	return out, nil
}
