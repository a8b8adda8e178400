package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/database/dbtest"
)

type fakeDirectory struct {
	accounts map[string]int64
	err      error
	calls    int
}

func (f *fakeDirectory) LookupByEmail(_ context.Context, email string) (*Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	id, ok := f.accounts[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &Account{CustomerID: id, Email: email}, nil
}

func (f *fakeDirectory) LookupByID(_ context.Context, customerID int64) (*Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for email, id := range f.accounts {
		if id == customerID {
			return &Account{CustomerID: id, Email: email}, nil
		}
	}
	return nil, ErrNotFound
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]int64
}

func (m *memoryCache) Get(_ context.Context, email string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.values[email]
	return id, ok, nil
}

func (m *memoryCache) Set(_ context.Context, email string, customerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]int64{}
	}
	m.values[email] = customerID
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestResolve_PayloadIDWins(t *testing.T) {
	db := dbtest.Open(t)
	dir := &fakeDirectory{err: Unavailable("down", nil)}
	r := NewResolver(db, dir, nil, time.Second)

	res, err := r.Resolve(context.Background(), CustomerRef{CustomerID: int64Ptr(42), Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.CustomerID)
	assert.Equal(t, SourcePayload, res.Source)
	assert.Zero(t, dir.calls)
}

func TestResolve_LocalAccountBeforeDirectory(t *testing.T) {
	db := dbtest.Open(t)
	u, err := models.NewProvisionedUser("Known@Example.com", 7)
	require.NoError(t, err)
	require.NoError(t, db.Create(u).Error)

	dir := &fakeDirectory{err: Unavailable("down", nil)}
	r := NewResolver(db, dir, nil, time.Second)

	res, err := r.Resolve(context.Background(), CustomerRef{Email: " known@example.com "})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.CustomerID)
	assert.Equal(t, SourceLocal, res.Source)
	assert.Zero(t, dir.calls)
}

func TestResolve_DirectoryHitIsCached(t *testing.T) {
	db := dbtest.Open(t)
	dir := &fakeDirectory{accounts: map[string]int64{"buyer@example.com": 99}}
	c := &memoryCache{}
	r := NewResolver(db, dir, c, time.Second)

	res, err := r.Resolve(context.Background(), CustomerRef{Email: "buyer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(99), res.CustomerID)
	assert.Equal(t, SourceDirectory, res.Source)

	res, err = r.Resolve(context.Background(), CustomerRef{Email: "buyer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, 1, dir.calls)
}

func TestResolve_NotFoundIsNotAnError(t *testing.T) {
	db := dbtest.Open(t)
	r := NewResolver(db, &fakeDirectory{}, nil, time.Second)

	res, err := r.Resolve(context.Background(), CustomerRef{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestResolve_EmptyReference(t *testing.T) {
	db := dbtest.Open(t)
	dir := &fakeDirectory{}
	r := NewResolver(db, dir, nil, time.Second)

	res, err := r.Resolve(context.Background(), CustomerRef{CustomerID: int64Ptr(0)})
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Zero(t, dir.calls)
}

func TestResolve_UnavailableIsDistinct(t *testing.T) {
	db := dbtest.Open(t)

	tests := []struct {
		name string
		dir  Directory
	}{
		{name: "backend down", dir: &fakeDirectory{err: Unavailable("remote directory timeout", context.DeadlineExceeded)}},
		{name: "unexpected error", dir: &fakeDirectory{err: errors.New("boom")}},
		{name: "no directory", dir: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(db, tt.dir, nil, time.Second)
			res, err := r.Resolve(context.Background(), CustomerRef{Email: "buyer@example.com"})
			require.Error(t, err)
			assert.False(t, res.Found())
			assert.True(t, IsUnavailable(err))
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCascadeDirectory_WithoutStore(t *testing.T) {
	ctx := context.Background()

	remote := &RemoteDirectory{}
	c := NewCascadeDirectory(remote, nil)
	_, err := c.LookupByEmail(ctx, "a@example.com")
	assert.True(t, IsUnavailable(err), "unconfigured remote without store stays unavailable")

	_, err = NewCascadeDirectory(nil, nil).LookupByEmail(ctx, "a@example.com")
	assert.True(t, IsUnavailable(err))
}

func TestTransportFailure(t *testing.T) {
	err := transportFailure("directory store", context.DeadlineExceeded)
	var u *UnavailableError
	require.True(t, errors.As(err, &u))
	assert.Equal(t, "directory store timeout", u.Reason)

	err = transportFailure("directory store", errors.New("connection refused"))
	require.True(t, errors.As(err, &u))
	assert.Equal(t, "directory store unreachable", u.Reason)
}

func TestContactEmail(t *testing.T) {
	db := dbtest.Open(t)
	u, err := models.NewProvisionedUser("local@example.com", 5)
	require.NoError(t, err)
	require.NoError(t, db.Create(u).Error)

	dir := &fakeDirectory{accounts: map[string]int64{"remote@example.com": 6}}
	r := NewResolver(db, dir, nil, time.Second)

	email, err := r.ContactEmail(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "local@example.com", email)
	assert.Zero(t, dir.calls)

	email, err = r.ContactEmail(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "remote@example.com", email)

	email, err = r.ContactEmail(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, email)

	r = NewResolver(db, &fakeDirectory{err: Unavailable("remote directory timeout", nil)}, nil, time.Second)
	_, err = r.ContactEmail(context.Background(), 7)
	assert.True(t, IsUnavailable(err))
}
