// Package store persists committed farmers and serves the district and
// organization directory. Postgres is the production store; Memory backs
// tests and dry runs.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres error codes the store reacts to.
const (
	pgUniqueViolation = "23505"
	phoneConstraint   = "farmers_phone_key"
)

var (
	_ core.Store          = (*Postgres)(nil)
	_ core.ImportRecorder = (*Postgres)(nil)
	_ core.ImportHistory  = (*Postgres)(nil)
	_ core.Store          = (*Memory)(nil)
	_ core.ImportRecorder = (*Memory)(nil)
	_ core.ImportHistory  = (*Memory)(nil)
)

// Postgres is the production store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. The caller owns the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates any missing tables and indexes.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// ----------------------------------------------------------------------------
// Directory
// ----------------------------------------------------------------------------

const (
	listDistrictsSQL     = `SELECT id::text, name FROM districts ORDER BY name`
	listOrganizationsSQL = `SELECT id::text, name FROM organizations ORDER BY name`

	districtByIDSQL       = `SELECT id::text FROM districts WHERE id::text = $1`
	districtByNameSQL     = `SELECT id::text FROM districts WHERE lower(name) = lower(btrim($1))`
	organizationByIDSQL   = `SELECT id::text FROM organizations WHERE id::text = $1`
	organizationByNameSQL = `SELECT id::text FROM organizations WHERE lower(name) = lower(btrim($1))`

	addDistrictSQL = `
WITH ins AS (
    INSERT INTO districts (name) VALUES (btrim($1))
    ON CONFLICT ((lower(name))) DO NOTHING
    RETURNING id
)
SELECT id::text FROM ins
UNION ALL
SELECT id::text FROM districts WHERE lower(name) = lower(btrim($1))
LIMIT 1`

	addOrganizationSQL = `
WITH ins AS (
    INSERT INTO organizations (name, kind) VALUES (btrim($1), $2)
    ON CONFLICT ((lower(name))) DO NOTHING
    RETURNING id
)
SELECT id::text FROM ins
UNION ALL
SELECT id::text FROM organizations WHERE lower(name) = lower(btrim($1))
LIMIT 1`
)

// LoadReferenceData returns every district and organization, sorted by name.
func (p *Postgres) LoadReferenceData(ctx context.Context) (core.ReferenceData, error) {
	districts, err := listRefs(ctx, p.pool, listDistrictsSQL)
	if err != nil {
		return core.ReferenceData{}, fmt.Errorf("list districts: %w", err)
	}
	orgs, err := listRefs(ctx, p.pool, listOrganizationsSQL)
	if err != nil {
		return core.ReferenceData{}, fmt.Errorf("list organizations: %w", err)
	}
	return core.ReferenceData{Districts: districts, Organizations: orgs}, nil
}

func listRefs(ctx context.Context, q DBTX, sql string) ([]core.Ref, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[core.Ref])
}

// AddDistrict inserts a district, or returns the existing one with that name.
func (p *Postgres) AddDistrict(ctx context.Context, name string) (core.Ref, error) {
	var id string
	if err := p.pool.QueryRow(ctx, addDistrictSQL, name).Scan(&id); err != nil {
		return core.Ref{}, fmt.Errorf("add district %q: %w", name, err)
	}
	return core.Ref{ID: id, Name: name}, nil
}

// AddOrganization inserts an organization, or returns the existing one with
// that name. kind is free text such as cooperative, supplier or buyer.
func (p *Postgres) AddOrganization(ctx context.Context, name, kind string) (core.Ref, error) {
	if kind == "" {
		kind = "cooperative"
	}
	var id string
	if err := p.pool.QueryRow(ctx, addOrganizationSQL, name, kind).Scan(&id); err != nil {
		return core.Ref{}, fmt.Errorf("add organization %q: %w", name, err)
	}
	return core.Ref{ID: id, Name: name}, nil
}

// lookupID resolves a directory entry by id, falling back to name only when
// no id is given.
func lookupID(ctx context.Context, q DBTX, byID, byName, id, name string, notFound error) (string, error) {
	sql, arg := byName, name
	if id != "" {
		sql, arg = byID, id
	}

	var out string
	err := q.QueryRow(ctx, sql, arg).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		label := name
		if id != "" {
			label = id
		}
		return "", fmt.Errorf("%w %q", notFound, label)
	}
	return out, err
}

// ----------------------------------------------------------------------------
// Commit
// ----------------------------------------------------------------------------

const (
	insertFarmerSQL = `
INSERT INTO farmers (
    first_name, last_name, phone, email, date_of_birth, gender, community,
    address, district_id, organization_id, id_type, id_number,
    household_size, is_leader, is_phone_smart, legacy_farmer_id
) VALUES (
    $1, $2, $3, $4, $5, $6, $7,
    $8, $9::uuid, $10::uuid, $11, $12,
    $13, $14, $15, $16
)
RETURNING id::text`

	insertFarmSQL = `
INSERT INTO farms (
    farmer_id, name, acreage, crop_type, soil_type, location_lat, location_lng
) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
RETURNING id::text`
)

// CreateFarmerWithFarms inserts one farmer and its farms in a single
// transaction. A taken phone number returns core.ErrDuplicatePhone and an
// unreadable date of birth core.ErrInvalidDateOfBirth.
func (p *Postgres) CreateFarmerWithFarms(ctx context.Context, nf core.NewFarmer, farms []core.FarmData) (core.CreatedFarmer, error) {
	var out core.CreatedFarmer

	dob, err := nf.Data.BirthDate()
	if err != nil {
		return out, err
	}

	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		districtID, err := lookupID(ctx, tx, districtByIDSQL, districtByNameSQL,
			nf.DistrictID, nf.Data.DistrictName, core.ErrUnresolvedDistrict)
		if err != nil {
			return err
		}
		orgID, err := lookupID(ctx, tx, organizationByIDSQL, organizationByNameSQL,
			nf.OrganizationID, nf.Data.OrganizationName, core.ErrUnresolvedOrganization)
		if err != nil {
			return err
		}

		d := nf.Data
		err = tx.QueryRow(ctx, insertFarmerSQL,
			d.FirstName, d.LastName, d.Phone, core.ToPgText(d.Email), dob,
			string(d.Gender), d.Community, d.Address, districtID, orgID,
			string(d.IDType), d.IDNumber, d.HouseholdSize, d.IsLeader, d.IsPhoneSmart,
			core.ToPgText(d.LegacyFarmerID),
		).Scan(&out.FarmerID)
		if err != nil {
			return err
		}

		out.FarmIDs = make([]string, 0, len(farms))
		for _, f := range farms {
			var farmID string
			err := tx.QueryRow(ctx, insertFarmSQL,
				out.FarmerID, f.Name, f.Acreage, core.ToPgText(f.CropType),
				core.ToPgText(string(f.SoilType)), f.LocationLat, f.LocationLng,
			).Scan(&farmID)
			if err != nil {
				return fmt.Errorf("insert farm %q: %w", f.Name, err)
			}
			out.FarmIDs = append(out.FarmIDs, farmID)
		}
		return nil
	})
	if err != nil {
		return core.CreatedFarmer{}, classify(err, nf.Data.Phone)
	}
	return out, nil
}

// classify turns constraint violations into the core sentinels.
func classify(err error, phone string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == phoneConstraint {
		return fmt.Errorf("%w (%s)", core.ErrDuplicatePhone, phone)
	}
	return fmt.Errorf("create farmer: %w", err)
}

// ----------------------------------------------------------------------------
// Import log
// ----------------------------------------------------------------------------

const (
	insertImportSQL = `
INSERT INTO import_log (
    session_id, file_name, organization, actor, ip_address,
    successful, failed, skipped, committed_at
) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)`

	recentImportsSQL = `
SELECT session_id::text, file_name, coalesce(organization, ''), coalesce(actor, ''),
       coalesce(ip_address, ''), successful, failed, skipped, committed_at
FROM import_log
ORDER BY committed_at DESC, id DESC
LIMIT $1`
)

// RecordImport appends one commit attempt to the import log.
func (p *Postgres) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	_, err := p.pool.Exec(ctx, insertImportSQL,
		rec.SessionID, rec.FileName, core.ToPgText(rec.Organization), core.ToPgText(rec.Actor),
		core.ToPgText(rec.IPAddress), rec.Successful, rec.Failed, rec.Skipped, rec.CommittedAt,
	)
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}

// RecentImports returns up to limit import log entries, newest first.
func (p *Postgres) RecentImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	rows, err := p.pool.Query(ctx, recentImportsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("recent imports: %w", err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[core.ImportRecord])
	if err != nil {
		return nil, fmt.Errorf("recent imports: %w", err)
	}
	return recs, nil
}
