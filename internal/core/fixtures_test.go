package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
)

// ----------------------------------------------------------------------------
// Row fixtures
// ----------------------------------------------------------------------------

// kwameRow is a complete 15-column farmer row without an organization column.
func kwameRow() []string {
	return []string{
		"Kwame", "Asante", "+233244123456", "", "1985-03-15", "male",
		"Akim Oda", "House 12", "Birim Central", "ghana_card", "GHA-123456789-0",
		"5", "Yes", "Yes", "",
	}
}

func amaRow() []string {
	return []string{
		"Ama", "Mensah", "+233201112223", "ama@example.com", "1990-07-01", "Female",
		"Asamankese", "Plot 7 Market Rd", "West Akim", "voters_id", "VID-99812",
		"", "no", "YES", "LEG-42",
	}
}

func legacyHeader() []string {
	return LegacyFarmerLayout.Headers()
}

func templateHeader() []string {
	return TemplateFarmerLayout.Headers()
}

func farmsHeader() []string {
	return FarmLayout.Headers()
}

// validFarmer returns farmer data that passes every rule.
func validFarmer() FarmerData {
	return FarmerData{
		FirstName:     "Kwame",
		LastName:      "Asante",
		Phone:         "+233244123456",
		DateOfBirth:   "1985-03-15",
		Gender:        GenderMale,
		Community:     "Akim Oda",
		Address:       "House 12",
		DistrictName:  "Birim Central",
		IDType:        IDTypeGhanaCard,
		IDNumber:      "GHA-123456789-0",
		HouseholdSize: pgtype.Int4{Int32: 5, Valid: true},
	}
}

func testRefs() ReferenceData {
	return ReferenceData{
		Districts: []Ref{
			{ID: "d-birim", Name: "Birim Central"},
			{ID: "d-west", Name: "West Akim"},
		},
		Organizations: []Ref{
			{ID: "o-coop", Name: "Akim Cocoa Cooperative"},
			{ID: "o-union", Name: "Eastern Farmers Union"},
		},
	}
}

// ----------------------------------------------------------------------------
// Workbook fixtures
// ----------------------------------------------------------------------------

type sheet struct {
	name string
	rows [][]any
}

func strRows(rows ...[]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = make([]any, len(r))
		for j, v := range r {
			out[i][j] = v
		}
	}
	return out
}

// buildXLSX writes the sheets, in order, to an in-memory workbook.
func buildXLSX(t *testing.T, sheets ...sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		switch {
		case i == 0 && s.name != "Sheet1":
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		case i > 0:
			if _, err := f.NewSheet(s.name); err != nil {
				t.Fatalf("NewSheet(%s): %v", s.name, err)
			}
		}

		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			row := row
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				t.Fatalf("SetSheetRow(%s, %s): %v", s.name, cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func xlsxInput(t *testing.T, sheets ...sheet) FileInput {
	return FileInput{Name: "farmers.xlsx", ContentType: MediaTypeXLSX, Data: buildXLSX(t, sheets...)}
}

// scenarioWorkbook is a Farmers sheet with Kwame (row 2) and Ama (row 3),
// plus a Farms sheet with one farm for Kwame and one orphan.
func scenarioWorkbook(t *testing.T) FileInput {
	farmers := [][]any{
		toAny(legacyHeader()),
		{"Kwame", "Asante", "+233244123456", "", "1985-03-15", "male", "Akim Oda", "House 12",
			"Birim Central", "ghana_card", "GHA-123456789-0", 5, "Yes", "Yes", ""},
		toAny(amaRow()),
	}
	farms := [][]any{
		toAny(farmsHeader()),
		{2, "Main Cocoa Farm", 5.5, "Cocoa", "loamy", 6.0769, -0.8761},
		{99, "Orphan Farm", 1.0, "Rice", "clay", 0, 0},
	}
	return xlsxInput(t, sheet{FarmersSheet, farmers}, sheet{FarmsSheet, farms})
}

func toAny(row []string) []any {
	return strRows(row)[0]
}

// ----------------------------------------------------------------------------
// Committer fake
// ----------------------------------------------------------------------------

type fakeCommitter struct {
	mu     sync.Mutex
	calls  []NewFarmer
	farms  map[string][]FarmData
	fail   map[string]error // phone -> error
	nextID int
}

func newFakeCommitter() *fakeCommitter {
	return &fakeCommitter{farms: map[string][]FarmData{}, fail: map[string]error{}}
}

func (c *fakeCommitter) CreateFarmerWithFarms(ctx context.Context, nf NewFarmer, farms []FarmData) (CreatedFarmer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, nf)
	if err := c.fail[nf.Data.Phone]; err != nil {
		return CreatedFarmer{}, err
	}

	c.nextID++
	id := fmt.Sprintf("farmer-%d", c.nextID)
	c.farms[id] = farms
	out := CreatedFarmer{FarmerID: id}
	for i := range farms {
		out.FarmIDs = append(out.FarmIDs, fmt.Sprintf("%s-farm-%d", id, i+1))
	}
	return out, nil
}

func (c *fakeCommitter) phones() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	for i, nf := range c.calls {
		out[i] = nf.Data.Phone
	}
	return out
}

// fakeStore adds a directory to fakeCommitter for Service tests.
type fakeStore struct {
	*fakeCommitter
	refs    ReferenceData
	records []ImportRecord
}

func (s *fakeStore) LoadReferenceData(ctx context.Context) (ReferenceData, error) {
	return s.refs, nil
}

func (s *fakeStore) RecordImport(ctx context.Context, rec ImportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func fieldNames(errs []FieldError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}
