package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/models"
	sq "github.com/Masterminds/squirrel"
)

// userRepository is the SQL-backed implementation of [UserRepository].
// It works against both PostgreSQL and SQLite; dialect differences are
// confined to the query builder placeholder format and the error classifier
// carried by [DB].
//
// All methods obtain a context-scoped logger via [logger.FromContext] for
// structured, request-level tracing of database interactions.
type userRepository struct {
	logger *logger.Logger
	db     *DB
	now    func() time.Time
}

// NewUserRepository constructs a [UserRepository] backed by the provided
// database connection and logger.
func NewUserRepository(db *DB, logger *logger.Logger) UserRepository {
	logger.Debug().Str("driver", db.driver).Msg("creating user repository")
	return &userRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser persists a new user record. UserID and timestamps are assigned
// by the caller.
//
// Error handling:
//   - unique violation on email → [ErrEmailAlreadyExists].
//   - retryable driver error → wrapped [ErrStoreUnavailable].
//   - any other driver-level error → wrapped as "unexpected DB error".
func (r *userRepository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.db.insertUserQuery(user.UserID, user.Email, user.Name, user.PasswordHash, user.CreatedAt).ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		if r.db.errorClassificator.IsUniqueViolation(err) {
			return models.User{}, ErrEmailAlreadyExists
		}
		log.Err(err).Str("func", "*userRepository.CreateUser").Msg("error inserting user")
		return models.User{}, r.dbError(err)
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = nil
	user.UpdatedAt = user.CreatedAt
	return user, nil
}

func (r *userRepository) FindUserByID(ctx context.Context, userID string) (models.User, error) {
	return r.findUser(ctx, sq.Eq{"user_id": userID})
}

// FindUserByEmail matches the email exactly as stored.
func (r *userRepository) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findUser(ctx, sq.Eq{"email": email})
}

func (r *userRepository) findUser(ctx context.Context, where sq.Eq) (models.User, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.db.selectUserQuery(where).ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var (
		user   models.User
		secret sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.UserID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.TwoFactorEnabled,
		&secret,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.User{}, ErrNoUserWasFound
	case err != nil:
		log.Err(err).Str("func", "*userRepository.findUser").Msg("error selecting user")
		return models.User{}, r.dbError(err)
	}

	if secret.Valid {
		user.TwoFactorSecret = &secret.String
	}
	return user, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.execUserUpdate(ctx, "*userRepository.UpdatePassword", r.db.updatePasswordQuery(userID, passwordHash, r.now()))
}

func (r *userRepository) UpdateEmail(ctx context.Context, userID, email string) error {
	return r.execUserUpdate(ctx, "*userRepository.UpdateEmail", r.db.updateEmailQuery(userID, email, r.now()))
}

func (r *userRepository) UpdateTwoFactor(ctx context.Context, userID string, enabled bool, secret *string) error {
	if !enabled {
		secret = nil
	}
	return r.execUserUpdate(ctx, "*userRepository.UpdateTwoFactor", r.db.updateTwoFactorQuery(userID, enabled, secret, r.now()))
}

func (r *userRepository) execUserUpdate(ctx context.Context, funcName string, q sq.UpdateBuilder) error {
	log := logger.FromContext(ctx)

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		// email is the only unique column an update can touch
		if r.db.errorClassificator.IsUniqueViolation(err) {
			return ErrEmailAlreadyExists
		}
		log.Err(err).Str("func", funcName).Msg("error updating user")
		return r.dbError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return r.dbError(err)
	}
	if affected == 0 {
		return ErrNoUserWasFound
	}
	return nil
}

// ReplaceBackupCodes deletes the old set and inserts the new one in a single
// transaction so a user never ends up with a mix of both.
func (r *userRepository) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) (err error) {
	log := logger.FromContext(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "*userRepository.ReplaceBackupCodes").Msg("error beginning transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, r.dbError(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := r.db.deleteBackupCodesQuery(userID).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).Str("func", "*userRepository.ReplaceBackupCodes").Msg("error deleting backup codes")
		return r.dbError(err)
	}

	if len(codeHashes) > 0 {
		query, args, err = r.db.insertBackupCodesQuery(userID, codeHashes, r.now()).ToSql()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			log.Err(err).Str("func", "*userRepository.ReplaceBackupCodes").Msg("error inserting backup codes")
			return r.dbError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		log.Err(err).Str("func", "*userRepository.ReplaceBackupCodes").Msg("error committing transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, r.dbError(err))
	}
	return nil
}

// ConsumeBackupCode relies on a conditional UPDATE; the row-level lock taken
// by the database guarantees a single winner.
func (r *userRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.db.consumeBackupCodeQuery(userID, codeHash, r.now()).ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*userRepository.ConsumeBackupCode").Msg("error consuming backup code")
		return false, r.dbError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, r.dbError(err)
	}
	return affected == 1, nil
}

func (r *userRepository) DeleteBackupCodes(ctx context.Context, userID string) error {
	log := logger.FromContext(ctx)

	query, args, err := r.db.deleteBackupCodesQuery(userID).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).Str("func", "*userRepository.DeleteBackupCodes").Msg("error deleting backup codes")
		return r.dbError(err)
	}
	return nil
}

// CountBackupCodes returns the number of unused codes.
func (r *userRepository) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	query, args, err := r.db.countBackupCodesQuery(userID).ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var count int
	if err = r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrScanningRow, r.dbError(err))
	}
	return count, nil
}

func (r *userRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// dbError marks retryable driver failures as [ErrStoreUnavailable].
func (r *userRepository) dbError(err error) error {
	if r.db.errorClassificator.Classify(err) == Retryable {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return fmt.Errorf("unexpected DB error: %w", err)
}
