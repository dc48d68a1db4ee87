package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/google/uuid"
)

// Farmer is a farmer held by the Memory store.
type Farmer struct {
	ID             string
	Data           core.FarmerData
	DistrictID     string
	OrganizationID string
	Farms          []core.FarmData
	FarmIDs        []string
}

// Memory is an in-process store with the same contract as Postgres: one
// farmer per phone number, names resolved against the directory.
type Memory struct {
	mu      sync.Mutex
	refs    core.ReferenceData
	farmers []Farmer
	phones  map[string]bool
	imports []core.ImportRecord
}

// NewMemory returns a store seeded with refs.
func NewMemory(refs core.ReferenceData) *Memory {
	return &Memory{
		refs:   copyRefs(refs),
		phones: make(map[string]bool),
	}
}

func copyRefs(r core.ReferenceData) core.ReferenceData {
	return core.ReferenceData{
		Districts:     append([]core.Ref(nil), r.Districts...),
		Organizations: append([]core.Ref(nil), r.Organizations...),
	}
}

// LoadReferenceData returns a copy of the directory.
func (m *Memory) LoadReferenceData(ctx context.Context) (core.ReferenceData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRefs(m.refs), nil
}

// AddDistrict adds a district unless one with the same name exists.
func (m *Memory) AddDistrict(ctx context.Context, name string) (core.Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return addRef(&m.refs.Districts, name), nil
}

// AddOrganization adds an organization unless one with the same name exists.
func (m *Memory) AddOrganization(ctx context.Context, name, kind string) (core.Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return addRef(&m.refs.Organizations, name), nil
}

func addRef(list *[]core.Ref, name string) core.Ref {
	name = strings.TrimSpace(name)
	for _, r := range *list {
		if strings.EqualFold(r.Name, name) {
			return r
		}
	}
	r := core.Ref{ID: uuid.NewString(), Name: name}
	*list = append(*list, r)
	sort.Slice(*list, func(i, j int) bool { return (*list)[i].Name < (*list)[j].Name })
	return r
}

// CreateFarmerWithFarms stores one farmer. Phone numbers are unique.
func (m *Memory) CreateFarmerWithFarms(ctx context.Context, nf core.NewFarmer, farms []core.FarmData) (core.CreatedFarmer, error) {
	if err := ctx.Err(); err != nil {
		return core.CreatedFarmer{}, err
	}
	if _, err := nf.Data.BirthDate(); err != nil {
		return core.CreatedFarmer{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	districtID, err := m.resolve(m.refs.Districts, nf.DistrictID, nf.Data.DistrictName, core.ErrUnresolvedDistrict)
	if err != nil {
		return core.CreatedFarmer{}, err
	}
	orgID, err := m.resolve(m.refs.Organizations, nf.OrganizationID, nf.Data.OrganizationName, core.ErrUnresolvedOrganization)
	if err != nil {
		return core.CreatedFarmer{}, err
	}

	phone := strings.TrimSpace(nf.Data.Phone)
	if m.phones[phone] {
		return core.CreatedFarmer{}, fmt.Errorf("%w (%s)", core.ErrDuplicatePhone, phone)
	}

	f := Farmer{
		ID:             uuid.NewString(),
		Data:           nf.Data,
		DistrictID:     districtID,
		OrganizationID: orgID,
		Farms:          append([]core.FarmData(nil), farms...),
		FarmIDs:        make([]string, len(farms)),
	}
	for i := range farms {
		f.FarmIDs[i] = uuid.NewString()
	}

	m.farmers = append(m.farmers, f)
	m.phones[phone] = true
	return core.CreatedFarmer{FarmerID: f.ID, FarmIDs: append([]string(nil), f.FarmIDs...)}, nil
}

// resolve mirrors the Postgres lookup: an id must exist, a name is matched
// case-insensitively. An empty directory accepts whatever it is given.
func (m *Memory) resolve(list []core.Ref, id, name string, notFound error) (string, error) {
	if len(list) == 0 {
		return id, nil
	}
	dir := core.ReferenceData{Districts: list}
	ref, ok := dir.ResolveDistrict(id, name)
	if !ok {
		label := name
		if id != "" {
			label = id
		}
		return "", fmt.Errorf("%w %q", notFound, label)
	}
	return ref.ID, nil
}

// Farmers returns the stored farmers in insertion order.
func (m *Memory) Farmers() []Farmer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Farmer(nil), m.farmers...)
}

// RecordImport appends to the import log.
func (m *Memory) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports = append(m.imports, rec)
	return nil
}

// RecentImports returns up to limit entries, newest first.
func (m *Memory) RecentImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.ImportRecord, 0, min(limit, len(m.imports)))
	for i := len(m.imports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.imports[i])
	}
	return out, nil
}
