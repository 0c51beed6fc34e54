package store

import (
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	usersTable       = "users"
	backupCodesTable = "backup_codes"
)

var userColumns = []string{
	"user_id",
	"email",
	"name",
	"password_hash",
	"two_factor_enabled",
	"two_factor_secret",
	"created_at",
	"updated_at",
}

func (db *DB) insertUserQuery(userID, email, name, passwordHash string, createdAt time.Time) sq.InsertBuilder {
	return db.builder.
		Insert(usersTable).
		Columns(userColumns...).
		Values(userID, email, name, passwordHash, false, nil, createdAt, createdAt)
}

func (db *DB) selectUserQuery(where sq.Eq) sq.SelectBuilder {
	return db.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1)
}

func (db *DB) updatePasswordQuery(userID, passwordHash string, now time.Time) sq.UpdateBuilder {
	return db.builder.
		Update(usersTable).
		Set("password_hash", passwordHash).
		Set("updated_at", now).
		Where(sq.Eq{"user_id": userID})
}

func (db *DB) updateEmailQuery(userID, email string, now time.Time) sq.UpdateBuilder {
	return db.builder.
		Update(usersTable).
		Set("email", email).
		Set("updated_at", now).
		Where(sq.Eq{"user_id": userID})
}

func (db *DB) updateTwoFactorQuery(userID string, enabled bool, secret *string, now time.Time) sq.UpdateBuilder {
	return db.builder.
		Update(usersTable).
		Set("two_factor_enabled", enabled).
		Set("two_factor_secret", secret).
		Set("updated_at", now).
		Where(sq.Eq{"user_id": userID})
}

func (db *DB) deleteBackupCodesQuery(userID string) sq.DeleteBuilder {
	return db.builder.
		Delete(backupCodesTable).
		Where(sq.Eq{"user_id": userID})
}

func (db *DB) insertBackupCodesQuery(userID string, codeHashes []string, now time.Time) sq.InsertBuilder {
	q := db.builder.
		Insert(backupCodesTable).
		Columns("user_id", "code_hash", "created_at")
	for _, h := range codeHashes {
		q = q.Values(userID, h, now)
	}
	return q
}

func (db *DB) consumeBackupCodeQuery(userID, codeHash string, now time.Time) sq.UpdateBuilder {
	return db.builder.
		Update(backupCodesTable).
		Set("used_at", now).
		Where(sq.Eq{"user_id": userID, "code_hash": codeHash, "used_at": nil})
}

func (db *DB) countBackupCodesQuery(userID string) sq.SelectBuilder {
	return db.builder.
		Select("COUNT(*)").
		From(backupCodesTable).
		Where(sq.Eq{"user_id": userID, "used_at": nil})
}
