package core

// commit.go sends staged farmers to the persistence layer.
//
// Each eligible farmer is committed on its own: one call, one transaction on
// the far side. A failure on one row never undoes another, and no row is
// sent twice within a commit.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Commit-time errors reported per row.
var (
	ErrDuplicatePhone         = errors.New("duplicate phone: a farmer with this phone number already exists")
	ErrUnresolvedDistrict     = errors.New("unknown district")
	ErrUnresolvedOrganization = errors.New("unknown organization")
	ErrOrganizationRequired   = errors.New("organization required")
	ErrInvalidDateOfBirth     = errors.New("invalid date of birth")
)

// NewFarmer is a farmer ready to persist, with district and organization
// resolved to directory ids.
type NewFarmer struct {
	Data           FarmerData
	DistrictID     string
	OrganizationID string
}

// CreatedFarmer identifies what the committer persisted.
type CreatedFarmer struct {
	FarmerID string   `json:"farmerId"`
	FarmIDs  []string `json:"farmIds"`
}

// Committer persists one farmer and its farms atomically.
type Committer interface {
	CreateFarmerWithFarms(ctx context.Context, farmer NewFarmer, farms []FarmData) (CreatedFarmer, error)
}

// RowError is one farmer that was not committed.
type RowError struct {
	Row     int        `json:"row"`
	Message string     `json:"message"`
	Data    FarmerData `json:"data"`
}

// CommitResult summarises one commit attempt. Skipped counts farmers held
// back because they or one of their farms failed validation.
type CommitResult struct {
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Errors     []RowError      `json:"errors"`
	Created    []CreatedFarmer `json:"created,omitempty"`
}

// Eligible reports whether a staged farmer may be committed.
func Eligible(f *StagedFarmer) bool {
	return f.IsValid && f.FarmsValid()
}

// Resolve maps a staged farmer's free-text names to directory ids.
//
// An id already on the record wins. A name is looked up case-insensitively.
// When the directory has no entries of a kind, names pass through unresolved
// and the committer decides. defaultOrg (id or name) covers rows that name no
// organization.
func Resolve(refs ReferenceData, d FarmerData, defaultOrg string) (NewFarmer, error) {
	nf := NewFarmer{Data: d, DistrictID: d.DistrictID, OrganizationID: d.OrganizationID}

	if len(refs.Districts) > 0 {
		ref, ok := refs.ResolveDistrict(d.DistrictID, d.DistrictName)
		if !ok {
			return nf, fmt.Errorf("%w %q", ErrUnresolvedDistrict, districtLabel(&d))
		}
		nf.DistrictID = ref.ID
	}

	orgID, orgName := d.OrganizationID, d.OrganizationName
	if !present(orgID) && !present(orgName) {
		orgID, orgName = "", strings.TrimSpace(defaultOrg)
	}
	if !present(orgID) && !present(orgName) {
		return nf, ErrOrganizationRequired
	}

	if len(refs.Organizations) > 0 {
		ref, ok := refs.ResolveOrganization(orgID, orgName)
		if !ok && orgID == "" {
			// The default may be given as an id.
			ref, ok = refs.ResolveOrganization(orgName, "")
		}
		if !ok {
			label := orgName
			if label == "" {
				label = orgID
			}
			return nf, fmt.Errorf("%w %q", ErrUnresolvedOrganization, label)
		}
		nf.OrganizationID = ref.ID
	} else if orgID == "" {
		nf.Data.OrganizationName = orgName
	}

	return nf, nil
}

// commitFarmers commits every eligible farmer in order and returns the
// result plus the ids of the staged farmers that were persisted.
func commitFarmers(ctx context.Context, c Committer, refs ReferenceData, defaultOrg string, farmers []*StagedFarmer) (CommitResult, map[string]bool) {
	res := CommitResult{Errors: []RowError{}}
	committed := make(map[string]bool)

	for _, f := range farmers {
		if !Eligible(f) {
			res.Skipped++
			continue
		}

		fail := func(err error) {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: f.RowNumber, Message: rowMessage(err), Data: f.Data})
		}

		if err := ctx.Err(); err != nil {
			fail(err)
			continue
		}

		nf, err := Resolve(refs, f.Data, defaultOrg)
		if err != nil {
			fail(err)
			continue
		}

		farms := make([]FarmData, len(f.Farms))
		for i, farm := range f.Farms {
			farms[i] = farm.Data
		}

		created, err := c.CreateFarmerWithFarms(ctx, nf, farms)
		if err != nil {
			slog.Debug("commit row failed", "row", f.RowNumber, "error", err)
			fail(err)
			continue
		}

		res.Successful++
		res.Created = append(res.Created, created)
		committed[f.ID] = true
	}

	return res, committed
}

// rowMessage renders a per-row failure for the results table.
func rowMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnresolvedDistrict),
		errors.Is(err, ErrUnresolvedOrganization),
		errors.Is(err, ErrOrganizationRequired),
		errors.Is(err, ErrInvalidDateOfBirth):
		return err.Error()
	}
	if IsUserFacing(err) {
		return FormatUserError(err)
	}
	return err.Error()
}
