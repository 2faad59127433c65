package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"intelplatform/db"
	"intelplatform/store"
)

func TestMain(m *testing.M) {
	db.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T, tracker FailureTracker) (*Service, *fakeClock) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), conn))
	t.Cleanup(func() { conn.Close() })

	if tracker == nil {
		tracker = NewMemoryTracker(300 * time.Second)
	}
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	tokens := NewTokens([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	tokens.now = clock.Now

	svc := NewService(store.NewUsers(conn), tracker, tokens, Options{
		Threshold: 3,
		Window:    300 * time.Second,
		AvatarDir: filepath.Join(t.TempDir(), "avatars"),
	}, zaptest.NewLogger(t))
	svc.now = clock.Now
	return svc, clock
}

func TestRegisterThenAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	for _, tc := range []struct{ user, pass, role string }{
		{"alice", "Secure123", "cyber"},
		{"bob42", "password9", "it"},
		{"Carol", "LongerPassw0rd!", "data"},
		{"root", "adm1nadm1n", "admin"},
	} {
		_, err := svc.Register(ctx, tc.user, tc.pass, tc.role)
		require.NoError(t, err, tc.user)

		sess, err := svc.Authenticate(ctx, tc.user, tc.pass)
		require.NoError(t, err, tc.user)
		assert.Equal(t, tc.user, sess.Username)
		assert.Equal(t, tc.role, sess.Role)
		assert.NotEmpty(t, sess.Token)
	}
}

func TestLockoutScenario(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t, nil)

	strength, err := svc.Register(ctx, "alice", "Secure123", "cyber")
	require.NoError(t, err)
	assert.Equal(t, Medium, strength)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.NotErrorIs(t, err, ErrLockedOut)

	clock.Advance(time.Second)
	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	clock.Advance(time.Second)
	_, err = svc.Authenticate(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Locked out.")
	assert.ErrorIs(t, err, ErrLockedOut)
	assert.ErrorIs(t, err, ErrBadCredentials)

	clock.Advance(10 * time.Second)
	_, err = svc.Authenticate(ctx, "alice", "Secure123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadCredentials, "must not report incorrect password while locked")

	var lockout *LockoutError
	require.ErrorAs(t, err, &lockout)
	assert.Equal(t, 290*time.Second, lockout.Remaining)
	assert.Equal(t, 290, lockout.Seconds())
	assert.Contains(t, err.Error(), "290 seconds")
}

func TestLockoutExpires(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t, nil)

	_, err := svc.Register(ctx, "alice", "Secure123", "cyber")
	require.NoError(t, err)

	for range 3 {
		_, _ = svc.Authenticate(ctx, "alice", "wrong")
	}
	_, err = svc.Authenticate(ctx, "alice", "Secure123")
	require.ErrorIs(t, err, ErrLockedOut)

	clock.Advance(300 * time.Second)
	sess, err := svc.Authenticate(ctx, "alice", "Secure123")
	require.NoError(t, err)
	assert.Equal(t, "cyber", sess.Role)

	_, ok, err := svc.tracker.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok, "successful login clears the failure record")
}

func TestStaleFailuresAreCleared(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t, nil)

	_, err := svc.Register(ctx, "alice", "Secure123", "cyber")
	require.NoError(t, err)

	_, _ = svc.Authenticate(ctx, "alice", "wrong")
	_, _ = svc.Authenticate(ctx, "alice", "wrong")
	clock.Advance(301 * time.Second)

	// old failures no longer count, so one more miss does not lock
	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.NotErrorIs(t, err, ErrLockedOut)
}

func TestUnknownUserCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.Authenticate(ctx, "ghost", "whatever1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, _ = svc.Authenticate(ctx, "ghost", "whatever1")
	_, err = svc.Authenticate(ctx, "ghost", "whatever1")
	assert.ErrorIs(t, err, ErrLockedOut)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRecordFailedAttempt(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	rec, err := svc.RecordFailedAttempt(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count)
	rec, err = svc.RecordFailedAttempt(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Count)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.Register(ctx, "alice", "Secure123", "cyber")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "Different99", "admin")
	assert.ErrorIs(t, err, ErrDuplicateUser)

	u, err := svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "cyber", u.Role)
	assert.True(t, db.CheckPasswordHash("Secure123", u.PasswordHash))
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	tests := []struct {
		name     string
		user     string
		pass     string
		role     string
		expected error
	}{
		{"short username", "al", "Secure123", "cyber", ErrInvalidUsername},
		{"long username", "abcdefghijklmnopqrstu", "Secure123", "cyber", ErrInvalidUsername},
		{"underscore rejected by default", "al_ice", "Secure123", "cyber", ErrInvalidUsername},
		{"short password", "alice", "Sec1", "cyber", ErrInvalidPassword},
		{"no digit", "alice", "SecurePassword", "cyber", ErrInvalidPassword},
		{"no letter", "alice", "12345678", "cyber", ErrInvalidPassword},
		{"unknown role", "alice", "Secure123", "finance", ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.user, tt.pass, tt.role)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestUsernamePolicyAllowsUnderscoreAndSpace(t *testing.T) {
	p := NewPolicy(PolicyAlnumUnderscore)
	assert.NoError(t, p.Check("al_ice smith", "Secure123", "it"))
	assert.ErrorIs(t, p.Check("alice!", "Secure123", "it"), ErrInvalidUsername)

	// unknown policy names use the strict rule
	assert.ErrorIs(t, NewPolicy("bogus").Check("al_ice", "Secure123", "it"), ErrInvalidUsername)
}

func TestPasswordStrength(t *testing.T) {
	assert.Equal(t, Weak, PasswordStrength("abcdefgh"))
	assert.Equal(t, Medium, PasswordStrength("Secure123"))
	assert.Equal(t, Strong, PasswordStrength("Secure123!abc"))
	assert.Equal(t, Weak, PasswordStrength("Ab1"))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("data"))
	assert.True(t, ValidRole("admin"))
	assert.False(t, ValidRole("user"))

	assert.True(t, SignupRole("cyber"))
	assert.False(t, SignupRole("admin"))
	assert.False(t, SignupRole("user"))
}

func TestRegisterSelfRejectsAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.RegisterSelf(ctx, "mallory", "Secure123", "admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = svc.Profile(ctx, "mallory")
	assert.ErrorIs(t, err, ErrUserNotFound)

	strength, err := svc.RegisterSelf(ctx, "dana", "Secure123", "data")
	require.NoError(t, err)
	assert.Equal(t, Medium, strength)

	// operators still create admins through Register
	_, err = svc.Register(ctx, "root", "Secure123", "admin")
	assert.NoError(t, err)
}
