package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"agriconnect.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Google id columns use a partial
// unique index (google_id where google_id is not null) so federated-only
// uniqueness holds without forbidding password-only accounts.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const uniqueViolation = "23505"

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(id, name, email, password_hash, google_id, role, suspended, created_at, updated_at)
		 values($1,$2,$3,nullif($4,''),nullif($5,''),$6,$7,$8,$9)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.GoogleID, string(a.Role), a.Suspended, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

const selectColumns = `id, name, email, coalesce(password_hash,''), coalesce(google_id,''), role, suspended, created_at, updated_at`

func (s *PGStore) scanOne(row *sql.Row) (*Account, error) {
	var a Account
	var role string
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.GoogleID, &role, &a.Suspended, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Role = Role(role)
	return &a, nil
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+selectColumns+` from accounts where id=$1`, id)
	return s.scanOne(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+selectColumns+` from accounts where email=$1`, NormalizeEmail(email))
	return s.scanOne(row)
}

func (s *PGStore) FindByGoogleID(ctx context.Context, googleID string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+selectColumns+` from accounts where google_id=$1`, googleID)
	return s.scanOne(row)
}

func (s *PGStore) Update(ctx context.Context, a *Account) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`update accounts set name=$2, email=$3, password_hash=nullif($4,''), google_id=nullif($5,''),
		 role=$6, suspended=$7, updated_at=$8 where id=$1`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.GoogleID, string(a.Role), a.Suspended, a.UpdatedAt,
	)
	if err != nil {
		return mapPGError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
