package store

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"intelplatform/db"
)

// LegacyDefaultRole is assigned to flat-file accounts that carry no role.
const LegacyDefaultRole = "user"

// ImportLegacyUsers backfills the users table from a flat file of
// "username,password_hash,role" lines. Existing usernames are left alone and
// the file is never written to. Entries whose second field is not a bcrypt
// digest are treated as plain-text passwords and hashed. A missing file
// imports nothing.
func ImportLegacyUsers(ctx context.Context, conn *sql.DB, path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open legacy users: %w", err)
	}
	defer f.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin legacy import: %w", err)
	}
	defer tx.Rollback()

	users := NewUsers(tx)
	migrated := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}

		username := strings.TrimSpace(parts[0])
		hash := strings.TrimSpace(parts[1])
		role := LegacyDefaultRole
		if len(parts) >= 3 && strings.TrimSpace(parts[2]) != "" {
			role = strings.TrimSpace(parts[2])
		}
		if username == "" || hash == "" {
			continue
		}
		if !db.IsBcryptHash(hash) {
			if hash, err = db.HashPassword(hash); err != nil {
				return 0, fmt.Errorf("hash legacy password for %s: %w", username, err)
			}
		}

		added, err := users.InsertIfMissing(ctx, username, hash, role)
		if err != nil {
			return 0, err
		}
		if added {
			migrated++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read legacy users: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit legacy import: %w", err)
	}
	return migrated, nil
}
