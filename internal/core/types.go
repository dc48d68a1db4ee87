package core

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Gender is the farmer's recorded gender.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
)

// Genders lists the accepted gender values in display order.
var Genders = []Gender{GenderMale, GenderFemale, GenderOther}

// IDType is the kind of identity document a farmer registered with.
type IDType string

const (
	IDTypeUnspecified    IDType = ""
	IDTypeGhanaCard      IDType = "ghana_card"
	IDTypeVotersID       IDType = "voters_id"
	IDTypePassport       IDType = "passport"
	IDTypeDriversLicense IDType = "drivers_license"
)

// IDTypes lists the accepted ID document types in display order.
var IDTypes = []IDType{IDTypeGhanaCard, IDTypeVotersID, IDTypePassport, IDTypeDriversLicense}

// SoilType classifies a farm's dominant soil. Unspecified is a valid value.
type SoilType string

const (
	SoilUnspecified SoilType = ""
	SoilSandy       SoilType = "sandy"
	SoilClay        SoilType = "clay"
	SoilLoamy       SoilType = "loamy"
	SoilSilt        SoilType = "silt"
	SoilRocky       SoilType = "rocky"
)

// SoilTypes lists the accepted soil types in display order.
var SoilTypes = []SoilType{SoilSandy, SoilClay, SoilLoamy, SoilSilt, SoilRocky}

// FarmerData holds the editable fields of a farmer, staged or manually entered.
//
// DistrictID and OrganizationID are only set by the manual-entry form, which
// picks from a resolved list. Bulk imports carry free-text names that are
// resolved at commit time.
type FarmerData struct {
	FirstName        string      `json:"firstName"`
	LastName         string      `json:"lastName"`
	Phone            string      `json:"phone"`
	Email            string      `json:"email"`
	DateOfBirth      string      `json:"dateOfBirth"`
	Gender           Gender      `json:"gender"`
	Community        string      `json:"community"`
	Address          string      `json:"address"`
	DistrictName     string      `json:"districtName"`
	DistrictID       string      `json:"districtId,omitempty"`
	OrganizationName string      `json:"organizationName"`
	OrganizationID   string      `json:"organizationId,omitempty"`
	IDType           IDType      `json:"idType"`
	IDNumber         string      `json:"idNumber"`
	HouseholdSize    pgtype.Int4 `json:"householdSize"`
	IsLeader         bool        `json:"isLeader"`
	IsPhoneSmart     bool        `json:"isPhoneSmart"`
	LegacyFarmerID   string      `json:"legacyFarmerId,omitempty"`
}

// FullName returns "First Last" with surrounding whitespace removed.
func (d FarmerData) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// BirthDate parses DateOfBirth. An unreadable value returns
// ErrInvalidDateOfBirth rather than a null date.
func (d FarmerData) BirthDate() (pgtype.Date, error) {
	dob := ToPgDate(d.DateOfBirth)
	if !dob.Valid {
		return dob, fmt.Errorf("%w %q", ErrInvalidDateOfBirth, d.DateOfBirth)
	}
	return dob, nil
}

// FarmData holds the editable fields of a farm.
type FarmData struct {
	Name        string        `json:"name"`
	Acreage     pgtype.Float8 `json:"acreage"`
	CropType    string        `json:"cropType,omitempty"`
	SoilType    SoilType      `json:"soilType"`
	LocationLat pgtype.Float8 `json:"locationLat"`
	LocationLng pgtype.Float8 `json:"locationLng"`
}

// FieldError is one violated constraint on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationResult is the outcome of validating one record.
type ValidationResult struct {
	IsValid bool         `json:"isValid"`
	Errors  []FieldError `json:"errors"`
}

// StagedFarm is a farm parsed from the Farms sheet and owned by one staged farmer.
type StagedFarm struct {
	ID        string       `json:"id"`
	RowNumber int          `json:"rowNumber"` // row in the Farms sheet, header is row 1
	FarmerRow int          `json:"farmerRow"` // rowNumber of the owning farmer
	Data      FarmData     `json:"data"`
	IsValid   bool         `json:"isValid"`
	Errors    []FieldError `json:"errors"`
}

// StagedFarmer is a farmer parsed from the Farmers sheet, not yet persisted.
type StagedFarmer struct {
	ID        string        `json:"id"`
	RowNumber int           `json:"rowNumber"`
	Data      FarmerData    `json:"data"`
	Farms     []*StagedFarm `json:"farms"`
	IsValid   bool          `json:"isValid"`
	Errors    []FieldError  `json:"errors"`
}

// FarmsValid reports whether every owned farm passed validation.
func (f *StagedFarmer) FarmsValid() bool {
	for _, farm := range f.Farms {
		if !farm.IsValid {
			return false
		}
	}
	return true
}

// clone returns a deep copy so snapshots never alias session state.
func (f *StagedFarmer) clone() *StagedFarmer {
	c := *f
	c.Errors = append([]FieldError(nil), f.Errors...)
	c.Farms = make([]*StagedFarm, len(f.Farms))
	for i, farm := range f.Farms {
		fc := *farm
		fc.Errors = append([]FieldError(nil), farm.Errors...)
		c.Farms[i] = &fc
	}
	return &c
}

// FileInput is an uploaded spreadsheet held in memory until parsed.
type FileInput struct {
	Name        string
	ContentType string // as declared by the client; the content is sniffed regardless
	Data        []byte
}

// Size returns the file length in bytes.
func (f FileInput) Size() int64 {
	return int64(len(f.Data))
}

// Stats summarises a session's staged records for the review UI.
type Stats struct {
	Farmers        int  `json:"farmers"`
	ValidFarmers   int  `json:"validFarmers"`
	InvalidFarmers int  `json:"invalidFarmers"`
	Farms          int  `json:"farms"`
	InvalidFarms   int  `json:"invalidFarms"`
	Ready          bool `json:"ready"`
}
