// ABOUTME: Organization registry persistence for the SQLite store
// ABOUTME: Implements reserve/activate/touch/delete with UNIQUE-backed name and namespace claims

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const organizationColumns = `id, name, namespace_id, admin_id, status, created_at, updated_at`

// ReserveOrganization inserts a placeholder row claiming org.Name.
// Returns ErrOrganizationExists if any row (reserved or active) already holds the name.
func (s *SQLiteStore) ReserveOrganization(ctx context.Context, org *Organization) error {
	query := `
		INSERT INTO organizations (id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		org.ID,
		org.Name,
		string(OrganizationStatusReserved),
		formatTime(org.CreatedAt),
		formatTime(org.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err, "organizations.name") {
			return ErrOrganizationExists
		}
		return fmt.Errorf("inserting organization reservation: %w", err)
	}

	org.Status = OrganizationStatusReserved
	s.logger.Debug("reserved organization", "id", org.ID, "name", org.Name)
	return nil
}

// ActivateOrganization completes a reservation with its owner and namespace.
// Returns ErrOrganizationNotFound if the row is gone or no longer reserved.
func (s *SQLiteStore) ActivateOrganization(ctx context.Context, id, adminID, namespaceID string, at time.Time) error {
	query := `
		UPDATE organizations
		SET admin_id = ?, namespace_id = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		adminID,
		namespaceID,
		string(OrganizationStatusActive),
		formatTime(at),
		id,
		string(OrganizationStatusReserved),
	)
	if err != nil {
		if isUniqueConstraintError(err, "organizations.namespace_id") {
			return ErrNamespaceExists
		}
		return fmt.Errorf("activating organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrganizationNotFound
	}

	s.logger.Info("activated organization", "id", id, "namespace", namespaceID)
	return nil
}

// GetOrganization retrieves an organization row by ID regardless of status.
func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id)
	org, err := scanOrganization(row)
	if err != nil {
		return nil, fmt.Errorf("querying organization: %w", err)
	}
	return org, nil
}

// GetOrganizationByName retrieves an organization row by normalized name regardless of status.
func (s *SQLiteStore) GetOrganizationByName(ctx context.Context, name string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE name = ?`, name)
	org, err := scanOrganization(row)
	if err != nil {
		return nil, fmt.Errorf("querying organization by name: %w", err)
	}
	return org, nil
}

// GetOrganizationByNamespace retrieves the organization bound to a namespace id.
func (s *SQLiteStore) GetOrganizationByNamespace(ctx context.Context, namespaceID string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE namespace_id = ?`, namespaceID)
	org, err := scanOrganization(row)
	if err != nil {
		return nil, fmt.Errorf("querying organization by namespace: %w", err)
	}
	return org, nil
}

// ListOrganizations returns rows with the given status, or all rows when status is empty.
func (s *SQLiteStore) ListOrganizations(ctx context.Context, status OrganizationStatus) ([]*Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying organizations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orgs []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating organizations: %w", err)
	}

	return orgs, nil
}

// TouchOrganization refreshes updated_at on an active organization.
func (s *SQLiteStore) TouchOrganization(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET updated_at = ? WHERE id = ? AND status = ?`,
		formatTime(at), id, string(OrganizationStatusActive),
	)
	if err != nil {
		return fmt.Errorf("touching organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// DeleteOrganization removes an organization row regardless of status.
func (s *SQLiteStore) DeleteOrganization(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrganizationNotFound
	}

	s.logger.Info("deleted organization", "id", id)
	return nil
}

// DeleteReservation removes a row only while it is still reserved.
// Reports whether a row was removed; a finalized row is left untouched.
func (s *SQLiteStore) DeleteReservation(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM organizations WHERE id = ? AND status = ?`,
		id, string(OrganizationStatusReserved),
	)
	if err != nil {
		return false, fmt.Errorf("deleting reservation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteStaleReservations removes reserved rows created before the cutoff.
func (s *SQLiteStore) DeleteStaleReservations(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM organizations WHERE status = ? AND created_at < ?`,
		string(OrganizationStatusReserved), formatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting stale reservations: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Warn("purged stale organization reservations", "count", n)
	}
	return n, nil
}

func scanOrganization(row rowScanner) (*Organization, error) {
	var org Organization
	var namespaceID, adminID sql.NullString
	var status, createdAt, updatedAt string

	err := row.Scan(&org.ID, &org.Name, &namespaceID, &adminID, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}

	org.NamespaceID = namespaceID.String
	org.AdminID = adminID.String
	org.Status = OrganizationStatus(status)
	if org.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if org.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &org, nil
}
