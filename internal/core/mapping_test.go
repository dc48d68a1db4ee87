package core

import (
	"testing"
)

func TestMapFarmers_ScenarioA(t *testing.T) {
	farmers := MapFarmers([][]string{legacyHeader(), kwameRow()})

	if len(farmers) != 1 {
		t.Fatalf("len = %d, want 1", len(farmers))
	}
	f := farmers[0]

	if f.RowNumber != 2 {
		t.Errorf("RowNumber = %d, want 2", f.RowNumber)
	}
	if f.ID == "" {
		t.Error("ID is empty")
	}
	if !f.Data.IsLeader || !f.Data.IsPhoneSmart {
		t.Errorf("IsLeader/IsPhoneSmart = %v/%v, want true/true", f.Data.IsLeader, f.Data.IsPhoneSmart)
	}
	if f.Data.IDType != IDTypeGhanaCard {
		t.Errorf("IDType = %q, want ghana_card (column 9 of the legacy layout)", f.Data.IDType)
	}
	if f.Data.IDNumber != "GHA-123456789-0" {
		t.Errorf("IDNumber = %q", f.Data.IDNumber)
	}
	if !f.Data.HouseholdSize.Valid || f.Data.HouseholdSize.Int32 != 5 {
		t.Errorf("HouseholdSize = %+v, want 5", f.Data.HouseholdSize)
	}
	if f.Data.OrganizationName != "" {
		t.Errorf("OrganizationName = %q, want empty", f.Data.OrganizationName)
	}

	if res := ValidateFarmer(f.Data); !res.IsValid {
		t.Errorf("Scenario A farmer invalid: %v", res.Errors)
	}
}

func TestMapFarmers_TemplateLayout(t *testing.T) {
	row := []string{
		"Kwame", "Asante", "+233244123456", "", "1985-03-15", "male",
		"Akim Oda", "House 12", "Birim Central", "Akim Cocoa Cooperative", "ghana_card", "GHA-123456789-0",
		"5", "Yes", "No", "LEG-1",
	}
	farmers := MapFarmers([][]string{templateHeader(), row})

	if len(farmers) != 1 {
		t.Fatalf("len = %d, want 1", len(farmers))
	}
	d := farmers[0].Data
	if d.OrganizationName != "Akim Cocoa Cooperative" {
		t.Errorf("OrganizationName = %q", d.OrganizationName)
	}
	if d.IDType != IDTypeGhanaCard {
		t.Errorf("IDType = %q, want ghana_card", d.IDType)
	}
	if d.IsPhoneSmart {
		t.Error("IsPhoneSmart = true for No")
	}
	if d.LegacyFarmerID != "LEG-1" {
		t.Errorf("LegacyFarmerID = %q", d.LegacyFarmerID)
	}
}

func TestDetectFarmerLayout(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   string
	}{
		{name: "template header", header: templateHeader(), want: "template"},
		{name: "legacy header", header: legacyHeader(), want: "legacy"},
		{name: "bare organisation spelling", header: []string{"", "", "", "", "", "", "", "", "", "organisation"}, want: "template"},
		{name: "short header", header: []string{"First Name"}, want: "legacy"},
		{name: "empty header", header: nil, want: "legacy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFarmerLayout(tt.header).Name; got != tt.want {
				t.Errorf("DetectFarmerLayout = %q, want %q", got, tt.want)
			}
		})
	}
}

// Row 0 never produces a record, even when it looks like data.
func TestMapFarmers_HeaderSkipped(t *testing.T) {
	farmers := MapFarmers([][]string{kwameRow(), amaRow()})

	if len(farmers) != 1 {
		t.Fatalf("len = %d, want 1", len(farmers))
	}
	if farmers[0].Data.FirstName != "Ama" {
		t.Errorf("first record = %q, want Ama", farmers[0].Data.FirstName)
	}
	if farmers[0].RowNumber != 2 {
		t.Errorf("RowNumber = %d, want 2", farmers[0].RowNumber)
	}
}

func TestMapFarmers_RowNumbersAndBlankRows(t *testing.T) {
	rows := [][]string{
		legacyHeader(),
		kwameRow(),                       // index 1 -> row 2
		{"", "  ", ""},                   // blank, skipped
		{},                               // blank, skipped
		{"", "", "", "", "", "", "0"},    // a zero counts as data
		amaRow(),                         // index 5 -> row 6
	}

	farmers := MapFarmers(rows)

	want := []int{2, 5, 6}
	if len(farmers) != len(want) {
		t.Fatalf("len = %d, want %d", len(farmers), len(want))
	}
	for i, f := range farmers {
		if f.RowNumber != want[i] {
			t.Errorf("farmers[%d].RowNumber = %d, want %d", i, f.RowNumber, want[i])
		}
	}
	if farmers[1].Data.Community != "0" {
		t.Errorf("zero row community = %q, want 0", farmers[1].Data.Community)
	}
}

func TestMapFarmers_Coercions(t *testing.T) {
	row := []string{
		" Yaw ", "Boateng", "0244000000", "", "03/15/1985", " FEMALE ",
		"Nkawkaw", "Box 55", "Kwahu West", "", "ID-12345",
		"2.5", "yes", "nope", "",
	}
	farmers := MapFarmers([][]string{legacyHeader(), row})
	d := farmers[0].Data

	if d.FirstName != "Yaw" {
		t.Errorf("FirstName = %q, want trimmed", d.FirstName)
	}
	if d.DateOfBirth != "1985-03-15" {
		t.Errorf("DateOfBirth = %q, want 1985-03-15", d.DateOfBirth)
	}
	if d.Gender != GenderFemale {
		t.Errorf("Gender = %q, want female", d.Gender)
	}
	if d.IDType != IDTypeUnspecified {
		t.Errorf("IDType = %q, want unspecified for a blank cell", d.IDType)
	}
	if !d.HouseholdSize.Valid || d.HouseholdSize.Int32 != 2 {
		t.Errorf("HouseholdSize = %+v, want 2 truncated from 2.5", d.HouseholdSize)
	}
	if !d.IsLeader || d.IsPhoneSmart {
		t.Errorf("IsLeader/IsPhoneSmart = %v/%v, want true/false", d.IsLeader, d.IsPhoneSmart)
	}
}

func TestMapFarmers_ShortRow(t *testing.T) {
	farmers := MapFarmers([][]string{legacyHeader(), {"Kofi"}})

	if len(farmers) != 1 {
		t.Fatalf("len = %d, want 1", len(farmers))
	}
	if farmers[0].Data.FirstName != "Kofi" || farmers[0].Data.LastName != "" {
		t.Errorf("Data = %+v", farmers[0].Data)
	}
}

func TestMapFarms_Attachment(t *testing.T) {
	farmers := MapFarmers([][]string{legacyHeader(), kwameRow(), amaRow()})
	farms := [][]string{
		farmsHeader(),
		{"2", "Main Cocoa Farm", "5.5", "Cocoa", "loamy", "6.0769", "-0.8761"}, // Scenario B
		{"99", "Orphan Farm", "1.0", "Rice", "clay", "0", "0"},               // Scenario C
		{"3.0", "Ama Plot", "", "Cassava", "", "", ""},
		{"abc", "Bad Ref", "1", "", "", "", ""},
		{"", "", "", "", "", "", ""},
		{"2", "Second Kwame Farm", "2", "Maize", "SANDY", "", ""},
	}

	MapFarms(farms, farmers)

	kwame, ama := farmers[0], farmers[1]
	if len(kwame.Farms) != 2 {
		t.Fatalf("Kwame farms = %d, want 2", len(kwame.Farms))
	}
	main := kwame.Farms[0]
	if main.Data.Name != "Main Cocoa Farm" || main.FarmerRow != 2 || main.RowNumber != 2 {
		t.Errorf("main farm = %+v", main)
	}
	if !main.Data.Acreage.Valid || main.Data.Acreage.Float64 != 5.5 {
		t.Errorf("Acreage = %+v, want 5.5", main.Data.Acreage)
	}
	if main.Data.SoilType != SoilLoamy {
		t.Errorf("SoilType = %q, want loamy", main.Data.SoilType)
	}
	if main.Data.LocationLng.Float64 != -0.8761 {
		t.Errorf("LocationLng = %v", main.Data.LocationLng.Float64)
	}
	if res := ValidateFarm(main.Data); !res.IsValid {
		t.Errorf("Scenario B farm invalid: %v", res.Errors)
	}
	if kwame.Farms[1].Data.SoilType != SoilSandy {
		t.Errorf("second farm SoilType = %q, want sandy", kwame.Farms[1].Data.SoilType)
	}

	if len(ama.Farms) != 1 || ama.Farms[0].Data.Name != "Ama Plot" {
		t.Errorf("Ama farms = %+v", ama.Farms)
	}
	if ama.Farms[0].Data.Acreage.Valid {
		t.Error("blank acreage should be null")
	}

	for _, f := range farmers {
		for _, farm := range f.Farms {
			if farm.Data.Name == "Orphan Farm" || farm.Data.Name == "Bad Ref" {
				t.Errorf("unattached farm %q appeared under row %d", farm.Data.Name, f.RowNumber)
			}
		}
	}
}

func TestMapFarms_NoFarmers(t *testing.T) {
	// Must not panic; nothing to attach to.
	MapFarms([][]string{farmsHeader(), {"2", "Farm"}}, nil)
}

func TestMapWorkbook(t *testing.T) {
	farmers := MapWorkbook(&Workbook{
		Farmers: [][]string{legacyHeader(), kwameRow()},
		Farms:   [][]string{farmsHeader(), {"2", "Main Cocoa Farm"}},
	})
	if len(farmers) != 1 || len(farmers[0].Farms) != 1 {
		t.Fatalf("MapWorkbook = %+v", farmers)
	}
}
