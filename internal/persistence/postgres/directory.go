package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers best-effort CRM lookups against the customer and lead
// tables. Lookups are exact-match on the stored phone or email.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory constructs a Directory.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) CustomerByPhone(ctx context.Context, organizationID, phone string) (string, error) {
	return d.lookup(ctx,
		`SELECT customer_id FROM customers WHERE organization_id=$1 AND phone=$2`,
		organizationID, phone)
}

func (d *Directory) LeadByPhone(ctx context.Context, organizationID, phone string) (string, error) {
	return d.lookup(ctx,
		`SELECT lead_id FROM leads WHERE organization_id=$1 AND phone=$2`,
		organizationID, phone)
}

func (d *Directory) CustomerByEmail(ctx context.Context, organizationID, email string) (string, error) {
	return d.lookup(ctx,
		`SELECT customer_id FROM customers WHERE organization_id=$1 AND lower(email)=lower($2)`,
		organizationID, email)
}

func (d *Directory) LeadByEmail(ctx context.Context, organizationID, email string) (string, error) {
	return d.lookup(ctx,
		`SELECT lead_id FROM leads WHERE organization_id=$1 AND lower(email)=lower($2)`,
		organizationID, email)
}

// OrganizationByNumber maps a provisioned receiving number to its owning
// organization and optional responsible user. Returns empty ids when the
// number is not provisioned.
func (d *Directory) OrganizationByNumber(ctx context.Context, number string) (string, string, error) {
	var organizationID string
	var userID *string
	err := d.pool.QueryRow(ctx,
		`SELECT organization_id, user_id FROM organization_numbers WHERE phone_number=$1`,
		number).Scan(&organizationID, &userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", nil
		}
		return "", "", err
	}
	if userID == nil {
		return organizationID, "", nil
	}
	return organizationID, *userID, nil
}

func (d *Directory) lookup(ctx context.Context, query, organizationID, key string) (string, error) {
	var id string
	err := d.pool.QueryRow(ctx, query, organizationID, key).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}
