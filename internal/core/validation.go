package core

// validation.go holds the field rules for farmers and farms.
//
// One rule table serves both the bulk-import path and the single-farmer
// manual-entry form. Rules run in declaration order and every rule runs, so a
// record reports all of its problems at once, in a stable order.
//
// Validation is a pure function of the record and the ReferenceData held by
// the Validator. Nothing here touches the database.

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var checker = validator.New()

// passes reports whether value satisfies a validator tag expression.
func passes(value any, tag string) bool {
	return checker.Var(value, tag) == nil
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Ref is one entry of a reference directory (district or organization).
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReferenceData is the pre-fetched directory that free-text names are
// checked and resolved against.
type ReferenceData struct {
	Districts     []Ref `json:"districts"`
	Organizations []Ref `json:"organizations"`
}

// ResolveDistrict finds a district by id, falling back to a
// case-insensitive name match.
func (r ReferenceData) ResolveDistrict(id, name string) (Ref, bool) {
	return resolveRef(r.Districts, id, name)
}

// ResolveOrganization finds an organization by id, falling back to a
// case-insensitive name match.
func (r ReferenceData) ResolveOrganization(id, name string) (Ref, bool) {
	return resolveRef(r.Organizations, id, name)
}

func resolveRef(refs []Ref, id, name string) (Ref, bool) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)

	if id != "" {
		for _, r := range refs {
			if r.ID == id {
				return r, true
			}
		}
		return Ref{}, false
	}
	if name == "" {
		return Ref{}, false
	}
	for _, r := range refs {
		if strings.EqualFold(strings.TrimSpace(r.Name), name) {
			return r, true
		}
	}
	return Ref{}, false
}

// Validator evaluates the rule table.
//
// A zero Validator checks field syntax only. With Refs populated it also
// checks that district and organization names resolve; an empty list skips
// that check for its kind. OrganizationRequired makes the organization a
// per-record requirement, as on the manual-entry form.
type Validator struct {
	Refs                 ReferenceData
	OrganizationRequired bool
}

type rule[T any] struct {
	field string
	check func(v Validator, d *T) string // "" when satisfied
}

var farmerRules = []rule[FarmerData]{
	{"firstName", func(_ Validator, d *FarmerData) string {
		if !present(d.FirstName) {
			return "First name is required"
		}
		return ""
	}},
	{"lastName", func(_ Validator, d *FarmerData) string {
		if !present(d.LastName) {
			return "Last name is required"
		}
		return ""
	}},
	{"phone", func(_ Validator, d *FarmerData) string {
		if !passes(strings.TrimSpace(d.Phone), "min=6") {
			return "Phone number must be at least 6 characters"
		}
		return ""
	}},
	{"email", func(_ Validator, d *FarmerData) string {
		if !passes(strings.TrimSpace(d.Email), "omitempty,email") {
			return "Invalid email address"
		}
		return ""
	}},
	{"dateOfBirth", func(_ Validator, d *FarmerData) string {
		if !present(d.DateOfBirth) {
			return "Date of birth is required"
		}
		if !IsDate(d.DateOfBirth) {
			return "Date of birth must be a date such as 1985-03-15 or 15/03/1985"
		}
		return ""
	}},
	{"gender", func(_ Validator, d *FarmerData) string {
		if !passes(string(d.Gender), oneOf(Genders)) {
			return "Gender must be one of: " + joinEnum(Genders)
		}
		return ""
	}},
	{"community", func(_ Validator, d *FarmerData) string {
		if !present(d.Community) {
			return "Community is required"
		}
		return ""
	}},
	{"address", func(_ Validator, d *FarmerData) string {
		if !passes(strings.TrimSpace(d.Address), "min=5") {
			return "Address must be at least 5 characters"
		}
		return ""
	}},
	{"districtName", func(v Validator, d *FarmerData) string {
		if !present(d.DistrictName) && !present(d.DistrictID) {
			return "District is required"
		}
		if len(v.Refs.Districts) > 0 {
			if _, ok := v.Refs.ResolveDistrict(d.DistrictID, d.DistrictName); !ok {
				return fmt.Sprintf("Unknown district %q", districtLabel(d))
			}
		}
		return ""
	}},
	{"organizationName", func(v Validator, d *FarmerData) string {
		set := present(d.OrganizationName) || present(d.OrganizationID)
		if !set {
			if v.OrganizationRequired {
				return "Organization is required"
			}
			return ""
		}
		if len(v.Refs.Organizations) > 0 {
			if _, ok := v.Refs.ResolveOrganization(d.OrganizationID, d.OrganizationName); !ok {
				return fmt.Sprintf("Unknown organization %q", organizationLabel(d))
			}
		}
		return ""
	}},
	{"idType", func(_ Validator, d *FarmerData) string {
		if !passes(string(d.IDType), oneOf(IDTypes)) {
			return "ID type must be one of: " + joinEnum(IDTypes)
		}
		return ""
	}},
	{"idNumber", func(_ Validator, d *FarmerData) string {
		if !passes(strings.TrimSpace(d.IDNumber), "min=5") {
			return "ID number must be at least 5 characters"
		}
		return ""
	}},
	{"householdSize", func(_ Validator, d *FarmerData) string {
		if d.HouseholdSize.Valid && !passes(d.HouseholdSize.Int32, "gt=0") {
			return "Household size must be a positive whole number"
		}
		return ""
	}},
}

var farmRules = []rule[FarmData]{
	{"name", func(_ Validator, d *FarmData) string {
		if !present(d.Name) {
			return "Farm name is required"
		}
		return ""
	}},
	{"acreage", func(_ Validator, d *FarmData) string {
		if d.Acreage.Valid && !passes(d.Acreage.Float64, "gt=0") {
			return "Acreage must be a positive number"
		}
		return ""
	}},
	{"soilType", func(_ Validator, d *FarmData) string {
		if !passes(string(d.SoilType), "omitempty,"+oneOf(SoilTypes)) {
			return "Soil type must be one of: " + joinEnum(SoilTypes)
		}
		return ""
	}},
}

func runRules[T any](v Validator, rules []rule[T], d *T) ValidationResult {
	res := ValidationResult{IsValid: true, Errors: []FieldError{}}
	for _, r := range rules {
		if msg := r.check(v, d); msg != "" {
			res.Errors = append(res.Errors, FieldError{Field: r.field, Message: msg})
		}
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

// Farmer validates farmer fields. Farms are validated separately.
func (v Validator) Farmer(d FarmerData) ValidationResult {
	return runRules(v, farmerRules, &d)
}

// Farm validates farm fields.
func (v Validator) Farm(d FarmData) ValidationResult {
	return runRules(v, farmRules, &d)
}

// Apply re-validates a staged farmer and each of its farms in place.
func (v Validator) Apply(f *StagedFarmer) {
	res := v.Farmer(f.Data)
	f.IsValid, f.Errors = res.IsValid, res.Errors
	for _, farm := range f.Farms {
		v.ApplyFarm(farm)
	}
}

// ApplyFarm re-validates one staged farm in place.
func (v Validator) ApplyFarm(farm *StagedFarm) {
	res := v.Farm(farm.Data)
	farm.IsValid, farm.Errors = res.IsValid, res.Errors
}

// ValidateFarmer checks field syntax only, with no reference lists.
func ValidateFarmer(d FarmerData) ValidationResult {
	return Validator{}.Farmer(d)
}

// ValidateFarm checks farm field syntax.
func ValidateFarm(d FarmData) ValidationResult {
	return Validator{}.Farm(d)
}

// ValidateManualEntry validates a farmer entered through the single-farmer
// form, where an organization is mandatory and both names must resolve.
func ValidateManualEntry(refs ReferenceData, d FarmerData, farms []FarmData) (ValidationResult, []ValidationResult) {
	v := Validator{Refs: refs, OrganizationRequired: true}
	farmResults := make([]ValidationResult, len(farms))
	for i, farm := range farms {
		farmResults[i] = v.Farm(farm)
	}
	return v.Farmer(d), farmResults
}

func oneOf[E ~string](values []E) string {
	return "oneof=" + strings.Join(enumStrings(values), " ")
}

func joinEnum[E ~string](values []E) string {
	return strings.Join(enumStrings(values), ", ")
}

func districtLabel(d *FarmerData) string {
	if present(d.DistrictName) {
		return strings.TrimSpace(d.DistrictName)
	}
	return d.DistrictID
}

func organizationLabel(d *FarmerData) string {
	if present(d.OrganizationName) {
		return strings.TrimSpace(d.OrganizationName)
	}
	return d.OrganizationID
}
