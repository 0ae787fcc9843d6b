package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	accountdomain "credential-session-service/backend/internal/account/domain"
	"credential-session-service/backend/internal/security"
	sessiondomain "credential-session-service/backend/internal/session/domain"
	sessionrepo "credential-session-service/backend/internal/session/repository"
	"credential-session-service/backend/internal/telemetry"
)

// memState is the committed contents of the fake store.
type memState struct {
	accounts map[string]*accountdomain.Account
	roles    map[string]*accountdomain.Role
	sessions map[string]*sessiondomain.Session
}

func newMemState() *memState {
	return &memState{
		accounts: map[string]*accountdomain.Account{},
		roles:    map[string]*accountdomain.Role{},
		sessions: map[string]*sessiondomain.Session{},
	}
}

func (m *memState) clone() *memState {
	c := newMemState()
	for k, v := range m.accounts {
		a := *v
		a.RoleIDs = append([]string(nil), v.RoleIDs...)
		c.accounts[k] = &a
	}
	for k, v := range m.roles {
		r := *v
		c.roles[k] = &r
	}
	for k, v := range m.sessions {
		s := *v
		c.sessions[k] = &s
	}
	return c
}

// memUoW is an in-memory UnitOfWork: each Do works on a copy that replaces the
// committed state only when fn returns nil. hooks inject failures by method name.
type memUoW struct {
	mu        sync.Mutex
	state     *memState
	hooks     map[string]func(ctx context.Context) error
	commits   int
	rollbacks int
}

func newMemUoW() *memUoW {
	return &memUoW{state: newMemState(), hooks: map[string]func(ctx context.Context) error{}}
}

func (u *memUoW) Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) (err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := u.state.clone()
	defer func() {
		if r := recover(); r != nil {
			u.rollbacks++
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()
	stores := Stores{Accounts: &memAccounts{u: u, s: work}, Sessions: &memSessions{u: u, s: work}}
	if err := fn(ctx, stores); err != nil {
		u.rollbacks++
		return err
	}
	u.state = work
	u.commits++
	return nil
}

func (u *memUoW) hook(ctx context.Context, name string) error {
	if h, ok := u.hooks[name]; ok {
		return h(ctx)
	}
	return ctx.Err()
}

// committed returns a snapshot of the committed state.
func (u *memUoW) committed() *memState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state.clone()
}

// mutate edits committed state directly, as an out-of-band admin change would.
func (u *memUoW) mutate(fn func(s *memState)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(u.state)
}

type memAccounts struct {
	u *memUoW
	s *memState
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	if err := r.u.hook(ctx, "Accounts.GetByID"); err != nil {
		return nil, err
	}
	if a, ok := r.s.accounts[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (r *memAccounts) GetByUsername(ctx context.Context, username string) (*accountdomain.Account, error) {
	if err := r.u.hook(ctx, "Accounts.GetByUsername"); err != nil {
		return nil, err
	}
	for _, a := range r.s.accounts {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memAccounts) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	if err := r.u.hook(ctx, "Accounts.ExistsByUsernameOrEmail"); err != nil {
		return false, err
	}
	for _, a := range r.s.accounts {
		if a.Username == username || a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAccounts) Create(ctx context.Context, a *accountdomain.Account) error {
	if err := r.u.hook(ctx, "Accounts.Create"); err != nil {
		return err
	}
	c := *a
	r.s.accounts[a.ID] = &c
	return nil
}

func (r *memAccounts) ListRolesForAccount(ctx context.Context, accountID string) ([]*accountdomain.Role, error) {
	if err := r.u.hook(ctx, "Accounts.ListRolesForAccount"); err != nil {
		return nil, err
	}
	a, ok := r.s.accounts[accountID]
	if !ok {
		return []*accountdomain.Role{}, nil
	}
	out := []*accountdomain.Role{}
	for _, id := range a.RoleIDs {
		if role, ok := r.s.roles[id]; ok {
			c := *role
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memAccounts) GetRoleByID(ctx context.Context, id string) (*accountdomain.Role, error) {
	if err := r.u.hook(ctx, "Accounts.GetRoleByID"); err != nil {
		return nil, err
	}
	if role, ok := r.s.roles[id]; ok {
		c := *role
		return &c, nil
	}
	return nil, nil
}

func (r *memAccounts) ListRoles(ctx context.Context) ([]*accountdomain.Role, error) {
	if err := r.u.hook(ctx, "Accounts.ListRoles"); err != nil {
		return nil, err
	}
	out := []*accountdomain.Role{}
	for _, role := range r.s.roles {
		c := *role
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memSessions struct {
	u *memUoW
	s *memState
}

func (r *memSessions) Create(ctx context.Context, s *sessiondomain.Session) error {
	if err := r.u.hook(ctx, "Sessions.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.sessions {
		if existing.TokenHash == s.TokenHash {
			return fmt.Errorf("duplicate token hash")
		}
	}
	c := *s
	r.s.sessions[s.ID] = &c
	return nil
}

func (r *memSessions) byToken(token string) *sessiondomain.Session {
	h := security.HashRefreshToken(token)
	for _, s := range r.s.sessions {
		if s.TokenHash == h {
			return s
		}
	}
	return nil
}

func (r *memSessions) FindByToken(ctx context.Context, token string, now time.Time) (*sessiondomain.Session, sessionrepo.Lookup, error) {
	if err := r.u.hook(ctx, "Sessions.FindByToken"); err != nil {
		return nil, sessionrepo.LookupNotFound, err
	}
	s := r.byToken(token)
	if s == nil {
		return nil, sessionrepo.LookupNotFound, nil
	}
	c := *s
	switch c.StateAt(now) {
	case sessiondomain.StateRevoked:
		return &c, sessionrepo.LookupRevoked, nil
	case sessiondomain.StateExpired:
		return &c, sessionrepo.LookupExpired, nil
	}
	return &c, sessionrepo.LookupFound, nil
}

func (r *memSessions) Revoke(ctx context.Context, token string, now time.Time) error {
	if err := r.u.hook(ctx, "Sessions.Revoke"); err != nil {
		return err
	}
	if s := r.byToken(token); s != nil && !s.Revoked {
		s.Revoked = true
		s.RevokedAt = &now
	}
	return nil
}

func (r *memSessions) Replace(ctx context.Context, oldID string, next *sessiondomain.Session, now time.Time) error {
	if err := r.u.hook(ctx, "Sessions.Replace"); err != nil {
		return err
	}
	old, ok := r.s.sessions[oldID]
	if !ok || old.Revoked {
		return sessionrepo.ErrNotUsable
	}
	old.Revoked, old.RevokedAt, old.ReplacedBy = true, &now, next.ID
	c := *next
	r.s.sessions[next.ID] = &c
	return nil
}

func (r *memSessions) RevokeAllByAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	if err := r.u.hook(ctx, "Sessions.RevokeAllByAccount"); err != nil {
		return 0, err
	}
	var n int64
	for _, s := range r.s.sessions {
		if s.AccountID == accountID && !s.Revoked {
			s.Revoked, s.RevokedAt = true, &now
			n++
		}
	}
	return n, nil
}

func (r *memSessions) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := r.u.hook(ctx, "Sessions.PurgeExpired"); err != nil {
		return 0, err
	}
	var n int64
	for id, s := range r.s.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []telemetry.AuthEvent
}

func (r *recordingEmitter) Emit(_ context.Context, e telemetry.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) types() []telemetry.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]telemetry.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
