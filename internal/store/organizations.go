package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/database"
	"github.com/nikhil/worktrack/internal/models"
)

// Organizations lists tenants and the owners reports are delivered to.
type Organizations struct {
	q database.Querier
}

func NewOrganizations(db *sql.DB) *Organizations {
	return &Organizations{q: db}
}

func (o *Organizations) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	rows, err := o.q.QueryContext(ctx, `SELECT id, name FROM organizations ORDER BY id`)
	if err != nil {
		return nil, apperr.Storage("list organizations", err)
	}
	defer rows.Close()

	orgs := []models.Organization{}
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name); err != nil {
			return nil, apperr.Storage("scan organization", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate organizations", err)
	}
	return orgs, nil
}

// ListOwners returns the owner memberships of an organization.
func (o *Organizations) ListOwners(ctx context.Context, orgID int64) ([]models.Membership, error) {
	query := `SELECT m.user_id, m.organization_id, m.role,
			COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.email, '')
		FROM memberships m
		JOIN users u ON u.user_id = m.user_id
		WHERE m.organization_id = ? AND m.role = ?
		ORDER BY m.user_id`
	rows, err := o.q.QueryContext(ctx, query, orgID, models.RoleOwner)
	if err != nil {
		return nil, apperr.Storage("list owners", err)
	}
	defer rows.Close()

	owners := []models.Membership{}
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.Role, &m.FirstName, &m.LastName, &m.Email); err != nil {
			return nil, apperr.Storage("scan owner", err)
		}
		owners = append(owners, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate owners", err)
	}
	return owners, nil
}

// MemberRole returns the user's role in the organization, or ErrNotFound when
// the user is not a member.
func (o *Organizations) MemberRole(ctx context.Context, userID, orgID int64) (models.Role, error) {
	var role models.Role
	err := o.q.QueryRowContext(ctx,
		`SELECT role FROM memberships WHERE user_id = ? AND organization_id = ?`, userID, orgID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", apperr.Storage("get member role", err)
	}
	return role, nil
}
