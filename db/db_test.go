package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestInitDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	conn, err := InitDB(context.Background(), dbPath)
	require.NoError(t, err)
	defer conn.Close()

	assert.Same(t, conn, DB)
	assert.FileExists(t, dbPath, "parent directory should be created lazily")

	for _, table := range []string{"users", "cyber_incidents", "it_tickets", "datasets_metadata", "ai_chat_history"} {
		var count int
		err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		assert.NoError(t, err, "could not query %s", table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	conn, err := InitDB(ctx, dbPath)
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO users (username, password_hash, role) VALUES ('keep', 'h', 'it')")
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, conn))
	conn.Close()

	// a second process opening the same file must not lose rows
	conn, err = InitDB(ctx, dbPath)
	require.NoError(t, err)
	defer conn.Close()

	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM users WHERE username = 'keep'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrateOverLegacyTables(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	defer conn.Close()

	// tables created by the older setup script, without goose bookkeeping
	_, err = conn.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT DEFAULT 'user',
		avatar TEXT DEFAULT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	assert.NoError(t, Migrate(ctx, conn))
}

func TestUniqueViolation(t *testing.T) {
	conn, err := InitDB(context.Background(), filepath.Join(t.TempDir(), "u.db"))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec("INSERT INTO users (username, password_hash) VALUES ('dup', 'h')")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO users (username, password_hash) VALUES ('dup', 'h')")
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(os.ErrNotExist))
}

func TestPasswordHashing(t *testing.T) {
	password := "mypassword"
	hash, err := HashPassword(password)
	require.NoError(t, err)

	assert.True(t, IsBcryptHash(hash))
	assert.True(t, CheckPasswordHash(password, hash), "correct password should match")
	assert.False(t, CheckPasswordHash("wrongpassword", hash), "wrong password should not match")
	assert.False(t, CheckPasswordHash(password, "not-a-hash"))
}

func TestDummyHash(t *testing.T) {
	assert.True(t, IsBcryptHash(DummyHash))
	assert.False(t, CheckPasswordHash("anything", DummyHash))
}
