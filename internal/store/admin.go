// ABOUTME: Admin identity persistence for the SQLite store
// ABOUTME: Maps admins.email UNIQUE violations to ErrEmailExists

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const adminColumns = `id, email, password_hash, organization_id, created_at, updated_at`

// CreateAdmin inserts a new admin identity.
func (s *SQLiteStore) CreateAdmin(ctx context.Context, admin *Admin) error {
	query := `INSERT INTO admins (` + adminColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		admin.ID,
		admin.Email,
		admin.PasswordHash,
		nullString(admin.OrganizationID),
		formatTime(admin.CreatedAt),
		formatTime(admin.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err, "admins.email") {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting admin: %w", err)
	}

	s.logger.Debug("created admin", "id", admin.ID)
	return nil
}

// GetAdmin retrieves an admin by ID.
func (s *SQLiteStore) GetAdmin(ctx context.Context, id string) (*Admin, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = ?`, id)
	admin, err := scanAdmin(row)
	if err != nil {
		return nil, fmt.Errorf("querying admin: %w", err)
	}
	return admin, nil
}

// GetAdminByEmail retrieves an admin by normalized email.
func (s *SQLiteStore) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = ?`, email)
	admin, err := scanAdmin(row)
	if err != nil {
		return nil, fmt.Errorf("querying admin by email: %w", err)
	}
	return admin, nil
}

// UpdateAdmin overwrites the mutable admin fields (email, hash, organization link).
func (s *SQLiteStore) UpdateAdmin(ctx context.Context, admin *Admin) error {
	query := `
		UPDATE admins
		SET email = ?, password_hash = ?, organization_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		admin.Email,
		admin.PasswordHash,
		nullString(admin.OrganizationID),
		formatTime(admin.UpdatedAt),
		admin.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err, "admins.email") {
			return ErrEmailExists
		}
		return fmt.Errorf("updating admin: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAdminNotFound
	}

	s.logger.Debug("updated admin", "id", admin.ID)
	return nil
}

// DeleteAdmin removes an admin identity.
func (s *SQLiteStore) DeleteAdmin(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting admin: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAdminNotFound
	}

	s.logger.Info("deleted admin", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdmin(row rowScanner) (*Admin, error) {
	var admin Admin
	var orgID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &orgID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, err
	}

	admin.OrganizationID = orgID.String
	if admin.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if admin.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &admin, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
