package core

// schema.go declares the positional column layout of the Farmers and Farms
// sheets. The same descriptors drive the parser (mapping.go) and the template
// generator (template.go), so the two cannot drift apart.
//
// Column position is the contract; header text is decorative. The one place
// headers are consulted is DetectFarmerLayout, which tells the 16-column
// template apart from the older 15-column sheet that has no organization
// column.

import "strings"

// Column describes one positional spreadsheet column.
type Column[T any] struct {
	Index   int
	Field   string   // JSON field name, also used in FieldError.Field
	Header  string   // header text written by the template generator
	Options []string // dropdown values for constrained columns
	List    string   // Validation Lists column feeding the dropdown, for directory columns
	Apply   func(dst *T, cell string)
}

// Layout is an ordered set of columns for one sheet.
type Layout[T any] struct {
	Name    string
	Columns []Column[T]
}

// Headers returns the header row for the layout.
func (l Layout[T]) Headers() []string {
	h := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		h[i] = c.Header
	}
	return h
}

// Apply copies every column of row into dst using each column's coercion.
func (l Layout[T]) Apply(dst *T, row []string) {
	for _, c := range l.Columns {
		if c.Apply != nil {
			c.Apply(dst, cellAt(row, c.Index))
		}
	}
}

// Column returns the column for a field name.
func (l Layout[T]) Column(field string) (Column[T], bool) {
	for _, c := range l.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column[T]{}, false
}

// Sheet names.
const (
	FarmersSheet         = "Farmers"
	FarmsSheet           = "Farms"
	ValidationListsSheet = "Validation Lists"
)

var yesNo = []string{"Yes", "No"}

// Validation Lists columns filled from the directory.
const (
	districtList     = "District"
	organizationList = "Organization"
)

// farmerColumns is the full template order. LegacyFarmerLayout drops
// organizationName and shifts the remaining columns left.
var farmerColumns = []Column[FarmerData]{
	{Field: "firstName", Header: "First Name*", Apply: func(d *FarmerData, s string) { d.FirstName = s }},
	{Field: "lastName", Header: "Last Name*", Apply: func(d *FarmerData, s string) { d.LastName = s }},
	{Field: "phone", Header: "Phone*", Apply: func(d *FarmerData, s string) { d.Phone = s }},
	{Field: "email", Header: "Email", Apply: func(d *FarmerData, s string) { d.Email = s }},
	{Field: "dateOfBirth", Header: "Date of Birth* (YYYY-MM-DD)", Apply: func(d *FarmerData, s string) { d.DateOfBirth = NormalizeDate(s) }},
	{Field: "gender", Header: "Gender*", Options: enumStrings(Genders), Apply: func(d *FarmerData, s string) { d.Gender = Gender(lowerCell(s)) }},
	{Field: "community", Header: "Community*", Apply: func(d *FarmerData, s string) { d.Community = s }},
	{Field: "address", Header: "Address*", Apply: func(d *FarmerData, s string) { d.Address = s }},
	{Field: "districtName", Header: "District*", List: districtList, Apply: func(d *FarmerData, s string) { d.DistrictName = s }},
	{Field: "organizationName", Header: "Organization", List: organizationList, Apply: func(d *FarmerData, s string) { d.OrganizationName = s }},
	{Field: "idType", Header: "ID Type*", Options: enumStrings(IDTypes), Apply: func(d *FarmerData, s string) { d.IDType = IDType(lowerCell(s)) }},
	{Field: "idNumber", Header: "ID Number*", Apply: func(d *FarmerData, s string) { d.IDNumber = s }},
	{Field: "householdSize", Header: "Household Size", Apply: func(d *FarmerData, s string) { d.HouseholdSize = ToPgInt4(s) }},
	{Field: "isLeader", Header: "Is Leader (Yes/No)", Options: yesNo, Apply: func(d *FarmerData, s string) { d.IsLeader = IsYes(s) }},
	{Field: "isPhoneSmart", Header: "Smartphone (Yes/No)", Options: yesNo, Apply: func(d *FarmerData, s string) { d.IsPhoneSmart = IsYes(s) }},
	{Field: "legacyFarmerId", Header: "Legacy Farmer ID", Apply: func(d *FarmerData, s string) { d.LegacyFarmerID = s }},
}

// TemplateFarmerLayout is the 16-column layout written by the template generator.
var TemplateFarmerLayout = buildLayout("template", farmerColumns, "")

// LegacyFarmerLayout is the 15-column layout without an organization column.
var LegacyFarmerLayout = buildLayout("legacy", farmerColumns, "organizationName")

// farmerRowIndex is the Farms column holding the owning farmer's row number.
const farmerRowIndex = 0

// FarmLayout is the 7-column Farms sheet layout. Column 0 is the farmer
// back-reference and is read by the mapper, not applied to FarmData.
var FarmLayout = buildLayout("farms", []Column[FarmData]{
	{Field: "farmerRow", Header: "Farmer Row #*"},
	{Field: "name", Header: "Farm Name*", Apply: func(d *FarmData, s string) { d.Name = s }},
	{Field: "acreage", Header: "Acreage", Apply: func(d *FarmData, s string) { d.Acreage = ToPgFloat8(s) }},
	{Field: "cropType", Header: "Crop Type", Apply: func(d *FarmData, s string) { d.CropType = s }},
	{Field: "soilType", Header: "Soil Type", Options: enumStrings(SoilTypes), Apply: func(d *FarmData, s string) { d.SoilType = SoilType(lowerCell(s)) }},
	{Field: "locationLat", Header: "Latitude", Apply: func(d *FarmData, s string) { d.LocationLat = ToPgFloat8(s) }},
	{Field: "locationLng", Header: "Longitude", Apply: func(d *FarmData, s string) { d.LocationLng = ToPgFloat8(s) }},
}, "")

// DetectFarmerLayout picks the farmer layout for a sheet from its header row.
func DetectFarmerLayout(header []string) Layout[FarmerData] {
	org, _ := TemplateFarmerLayout.Column("organizationName")
	if strings.Contains(strings.ToLower(cellAt(header, org.Index)), "organi") {
		return TemplateFarmerLayout
	}
	return LegacyFarmerLayout
}

func buildLayout[T any](name string, cols []Column[T], skip string) Layout[T] {
	out := make([]Column[T], 0, len(cols))
	for _, c := range cols {
		if c.Field == skip {
			continue
		}
		c.Index = len(out)
		out = append(out, c)
	}
	return Layout[T]{Name: name, Columns: out}
}

func enumStrings[E ~string](values []E) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
