package core

// staging.go implements ImportSession, the per-upload staging store.
//
// A session owns its staged farmers exclusively. All state lives behind one
// mutex; the two slow steps (parsing and committing) run with the lock
// released, guarded by the Parsing/Committing states and a generation
// counter so an abandoned parse cannot overwrite a newer file's results.
//
// State machine:
//
//	Empty -> FileSelected -> Parsing -> Staged -> Reviewing -> Committing -> Done | Failed
//
// Every edit or delete re-validates the farmer it touched. Removing the file
// returns to Empty from any state except Committing.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// State is an import session's workflow position.
type State string

const (
	StateEmpty        State = "empty"
	StateFileSelected State = "file_selected"
	StateParsing      State = "parsing"
	StateStaged       State = "staged"
	StateReviewing    State = "reviewing"
	StateCommitting   State = "committing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Session errors.
var (
	ErrNoFile            = errors.New("no file selected")
	ErrNotReady          = errors.New("no valid farmers to commit")
	ErrSessionBusy       = errors.New("import session is busy")
	ErrNothingStaged     = errors.New("nothing staged")
	ErrFarmerNotFound    = errors.New("staged farmer not found")
	ErrFarmNotFound      = errors.New("staged farm not found")
	ErrParseSuperseded   = errors.New("parse superseded by a newer file")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// SessionOptions configures a new ImportSession.
type SessionOptions struct {
	MaxFileSize int64
	Validator   Validator
	// DefaultOrganization (id or name) is used at commit for rows that name
	// no organization of their own.
	DefaultOrganization string
}

// ImportSession is one upload's staging area.
type ImportSession struct {
	ID string

	mu         sync.Mutex
	opts       SessionOptions
	state      State
	file       *FileInput
	farmers    []*StagedFarmer
	generation uint64
	lastErr    error
	lastResult *CommitResult
	createdAt  time.Time
	touchedAt  time.Time

	afterRead func() // test hook, runs between decode and publish
}

// NewImportSession creates an empty session.
func NewImportSession(opts SessionOptions) *ImportSession {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	now := time.Now()
	return &ImportSession{
		ID:        uuid.NewString(),
		opts:      opts,
		state:     StateEmpty,
		createdAt: now,
		touchedAt: now,
	}
}

// FarmerPatch is a partial update to FarmerData. Nil fields are left alone.
type FarmerPatch struct {
	FirstName        *string      `json:"firstName,omitempty"`
	LastName         *string      `json:"lastName,omitempty"`
	Phone            *string      `json:"phone,omitempty"`
	Email            *string      `json:"email,omitempty"`
	DateOfBirth      *string      `json:"dateOfBirth,omitempty"`
	Gender           *Gender      `json:"gender,omitempty"`
	Community        *string      `json:"community,omitempty"`
	Address          *string      `json:"address,omitempty"`
	DistrictName     *string      `json:"districtName,omitempty"`
	DistrictID       *string      `json:"districtId,omitempty"`
	OrganizationName *string      `json:"organizationName,omitempty"`
	OrganizationID   *string      `json:"organizationId,omitempty"`
	IDType           *IDType      `json:"idType,omitempty"`
	IDNumber         *string      `json:"idNumber,omitempty"`
	HouseholdSize    *pgtype.Int4 `json:"householdSize,omitempty"`
	IsLeader         *bool        `json:"isLeader,omitempty"`
	IsPhoneSmart     *bool        `json:"isPhoneSmart,omitempty"`
	LegacyFarmerID   *string      `json:"legacyFarmerId,omitempty"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Apply merges the patch into d. Enum values are lower-cased.
func (p FarmerPatch) Apply(d *FarmerData) {
	setString(&d.FirstName, p.FirstName)
	setString(&d.LastName, p.LastName)
	setString(&d.Phone, p.Phone)
	setString(&d.Email, p.Email)
	if p.DateOfBirth != nil {
		d.DateOfBirth = NormalizeDate(*p.DateOfBirth)
	}
	if p.Gender != nil {
		d.Gender = Gender(lowerCell(string(*p.Gender)))
	}
	setString(&d.Community, p.Community)
	setString(&d.Address, p.Address)
	setString(&d.DistrictName, p.DistrictName)
	setString(&d.DistrictID, p.DistrictID)
	setString(&d.OrganizationName, p.OrganizationName)
	setString(&d.OrganizationID, p.OrganizationID)
	if p.IDType != nil {
		d.IDType = IDType(lowerCell(string(*p.IDType)))
	}
	setString(&d.IDNumber, p.IDNumber)
	if p.HouseholdSize != nil {
		d.HouseholdSize = *p.HouseholdSize
	}
	if p.IsLeader != nil {
		d.IsLeader = *p.IsLeader
	}
	if p.IsPhoneSmart != nil {
		d.IsPhoneSmart = *p.IsPhoneSmart
	}
	setString(&d.LegacyFarmerID, p.LegacyFarmerID)
}

// FarmPatch is a partial update to FarmData. Nil fields are left alone.
type FarmPatch struct {
	Name        *string        `json:"name,omitempty"`
	Acreage     *pgtype.Float8 `json:"acreage,omitempty"`
	CropType    *string        `json:"cropType,omitempty"`
	SoilType    *SoilType      `json:"soilType,omitempty"`
	LocationLat *pgtype.Float8 `json:"locationLat,omitempty"`
	LocationLng *pgtype.Float8 `json:"locationLng,omitempty"`
}

// Apply merges the patch into d.
func (p FarmPatch) Apply(d *FarmData) {
	setString(&d.Name, p.Name)
	if p.Acreage != nil {
		d.Acreage = *p.Acreage
	}
	setString(&d.CropType, p.CropType)
	if p.SoilType != nil {
		d.SoilType = SoilType(lowerCell(string(*p.SoilType)))
	}
	if p.LocationLat != nil {
		d.LocationLat = *p.LocationLat
	}
	if p.LocationLng != nil {
		d.LocationLng = *p.LocationLng
	}
}

// NormalizeFarmer trims text and lower-cases enums the way an edit does.
func NormalizeFarmer(d FarmerData) FarmerData {
	out := d
	FarmerPatch{
		FirstName: &d.FirstName, LastName: &d.LastName, Phone: &d.Phone, Email: &d.Email,
		DateOfBirth: &d.DateOfBirth, Gender: &d.Gender, Community: &d.Community, Address: &d.Address,
		DistrictName: &d.DistrictName, DistrictID: &d.DistrictID,
		OrganizationName: &d.OrganizationName, OrganizationID: &d.OrganizationID,
		IDType: &d.IDType, IDNumber: &d.IDNumber, LegacyFarmerID: &d.LegacyFarmerID,
	}.Apply(&out)
	return out
}

// NormalizeFarm is NormalizeFarmer for farms.
func NormalizeFarm(d FarmData) FarmData {
	out := d
	FarmPatch{Name: &d.Name, CropType: &d.CropType, SoilType: &d.SoilType}.Apply(&out)
	return out
}

// ----------------------------------------------------------------------------
// File selection and parsing
// ----------------------------------------------------------------------------

// SetFile selects a file, discarding any staged records and superseding a
// parse still in flight.
func (s *ImportSession) SetFile(file FileInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCommitting {
		return ErrSessionBusy
	}

	s.file = &file
	s.resetLocked(StateFileSelected)
	return nil
}

// RemoveFile discards the file and everything parsed from it.
func (s *ImportSession) RemoveFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCommitting {
		return ErrSessionBusy
	}

	s.file = nil
	s.resetLocked(StateEmpty)
	return nil
}

func (s *ImportSession) resetLocked(next State) {
	s.generation++
	s.farmers = nil
	s.lastErr = nil
	s.lastResult = nil
	s.state = next
	s.touchedAt = time.Now()
}

// Parse reads and maps the selected file, then validates every record.
//
// On a structural error the session moves to Failed with nothing staged and
// the error is returned. If the file is replaced or removed while the parse
// runs, the result is dropped and ErrParseSuperseded is returned.
func (s *ImportSession) Parse(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == StateParsing || s.state == StateCommitting:
		s.mu.Unlock()
		return ErrSessionBusy
	case s.file == nil:
		s.mu.Unlock()
		return ErrNoFile
	}
	s.generation++
	gen := s.generation
	file := *s.file
	validator := s.opts.Validator
	maxSize := s.opts.MaxFileSize
	s.farmers = nil
	s.lastErr = nil
	s.lastResult = nil
	s.state = StateParsing
	s.mu.Unlock()

	var farmers []*StagedFarmer
	wb, err := ReadWorkbook(ctx, file, maxSize)
	if err == nil {
		farmers = MapWorkbook(wb)
		for _, f := range farmers {
			validator.Apply(f)
		}
		err = ctx.Err()
	}
	if s.afterRead != nil {
		s.afterRead()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrParseSuperseded
	}

	s.touchedAt = time.Now()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		return err
	}

	s.farmers = farmers
	s.state = StateStaged
	return nil
}

// ----------------------------------------------------------------------------
// Review edits
// ----------------------------------------------------------------------------

// editableLocked reports whether staged records may be edited.
func (s *ImportSession) editableLocked() error {
	switch s.state {
	case StateParsing, StateCommitting:
		return ErrSessionBusy
	case StateStaged, StateReviewing, StateFailed:
		if len(s.farmers) > 0 {
			return nil
		}
	}
	return ErrNothingStaged
}

func (s *ImportSession) findLocked(farmerID string) (int, *StagedFarmer, error) {
	for i, f := range s.farmers {
		if f.ID == farmerID {
			return i, f, nil
		}
	}
	return -1, nil, fmt.Errorf("%w: %s", ErrFarmerNotFound, farmerID)
}

func findFarm(f *StagedFarmer, farmID string) (int, *StagedFarm, error) {
	for i, farm := range f.Farms {
		if farm.ID == farmID {
			return i, farm, nil
		}
	}
	return -1, nil, fmt.Errorf("%w: %s", ErrFarmNotFound, farmID)
}

func (s *ImportSession) editedLocked() {
	s.state = StateReviewing
	s.touchedAt = time.Now()
}

// UpdateFarmer merges patch into a staged farmer and re-validates it.
func (s *ImportSession) UpdateFarmer(farmerID string, patch FarmerPatch) (*StagedFarmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return nil, err
	}
	_, f, err := s.findLocked(farmerID)
	if err != nil {
		return nil, err
	}

	patch.Apply(&f.Data)
	s.opts.Validator.Apply(f)
	s.editedLocked()
	return f.clone(), nil
}

// UpdateFarm merges patch into a farm owned by farmerID and re-validates it.
func (s *ImportSession) UpdateFarm(farmerID, farmID string, patch FarmPatch) (*StagedFarmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return nil, err
	}
	_, f, err := s.findLocked(farmerID)
	if err != nil {
		return nil, err
	}
	_, farm, err := findFarm(f, farmID)
	if err != nil {
		return nil, err
	}

	patch.Apply(&farm.Data)
	s.opts.Validator.Apply(f)
	s.editedLocked()
	return f.clone(), nil
}

// DeleteFarmer removes a staged farmer and all of its farms.
func (s *ImportSession) DeleteFarmer(farmerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	i, _, err := s.findLocked(farmerID)
	if err != nil {
		return err
	}

	s.farmers = append(s.farmers[:i], s.farmers[i+1:]...)
	s.editedLocked()
	return nil
}

// DeleteFarm removes one farm from its owning farmer.
func (s *ImportSession) DeleteFarm(farmerID, farmID string) (*StagedFarmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return nil, err
	}
	_, f, err := s.findLocked(farmerID)
	if err != nil {
		return nil, err
	}
	j, _, err := findFarm(f, farmID)
	if err != nil {
		return nil, err
	}

	f.Farms = append(f.Farms[:j], f.Farms[j+1:]...)
	s.opts.Validator.Apply(f)
	s.editedLocked()
	return f.clone(), nil
}

// ValidateAll re-validates every staged farmer and farm.
func (s *ImportSession) ValidateAll() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return Stats{}, err
	}
	for _, f := range s.farmers {
		s.opts.Validator.Apply(f)
	}
	s.touchedAt = time.Now()
	return s.statsLocked(), nil
}

// SetReferenceData replaces the directory used to check district and
// organization names, and re-validates anything staged.
func (s *ImportSession) SetReferenceData(refs ReferenceData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.Validator.Refs = refs
	if s.state == StateParsing || s.state == StateCommitting {
		return
	}
	for _, f := range s.farmers {
		s.opts.Validator.Apply(f)
	}
}

// ----------------------------------------------------------------------------
// Queries
// ----------------------------------------------------------------------------

// State returns the current workflow state.
func (s *ImportSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Farmers returns a deep copy of the staged farmers in sheet order.
func (s *ImportSession) Farmers() []*StagedFarmer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.farmersLocked()
}

func (s *ImportSession) farmersLocked() []*StagedFarmer {
	out := make([]*StagedFarmer, len(s.farmers))
	for i, f := range s.farmers {
		out[i] = f.clone()
	}
	return out
}

// Farmer returns a copy of one staged farmer.
func (s *ImportSession) Farmer(farmerID string) (*StagedFarmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, f, err := s.findLocked(farmerID)
	if err != nil {
		return nil, err
	}
	return f.clone(), nil
}

// Farms returns copies of every staged farm across all farmers.
func (s *ImportSession) Farms() []*StagedFarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*StagedFarm
	for _, f := range s.farmers {
		out = append(out, f.clone().Farms...)
	}
	return out
}

// Stats counts staged records.
func (s *ImportSession) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *ImportSession) statsLocked() Stats {
	var st Stats
	for _, f := range s.farmers {
		st.Farmers++
		if f.IsValid {
			st.ValidFarmers++
		} else {
			st.InvalidFarmers++
		}
		for _, farm := range f.Farms {
			st.Farms++
			if !farm.IsValid {
				st.InvalidFarms++
			}
		}
	}
	st.Ready = st.ValidFarmers > 0
	return st
}

// ReadyToContinue reports whether at least one staged farmer is valid.
func (s *ImportSession) ReadyToContinue() bool {
	return s.Stats().Ready
}

// LastActive returns when the session was last changed.
func (s *ImportSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// Snapshot is a consistent copy of a session for rendering.
type Snapshot struct {
	ID                  string          `json:"id"`
	State               State           `json:"state"`
	FileName            string          `json:"fileName,omitempty"`
	DefaultOrganization string          `json:"defaultOrganization,omitempty"`
	Farmers             []*StagedFarmer `json:"farmers"`
	Stats               Stats           `json:"stats"`
	Error               string          `json:"error,omitempty"`
	LastResult          *CommitResult   `json:"lastResult,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// Snapshot copies the session state.
func (s *ImportSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                  s.ID,
		State:               s.state,
		DefaultOrganization: s.opts.DefaultOrganization,
		Farmers:             s.farmersLocked(),
		Stats:               s.statsLocked(),
		LastResult:          s.lastResult,
		CreatedAt:           s.createdAt,
	}
	if s.file != nil {
		snap.FileName = s.file.Name
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// ----------------------------------------------------------------------------
// Commit
// ----------------------------------------------------------------------------

// Commit sends every eligible staged farmer to c, one at a time.
//
// Committed farmers leave the session. Failed and skipped farmers stay
// staged, so a second Commit resends only those. The session ends in Done
// when nothing is left, Failed when any row failed, and Reviewing when only
// skipped rows remain.
func (s *ImportSession) Commit(ctx context.Context, c Committer) (CommitResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateParsing, StateCommitting:
		s.mu.Unlock()
		return CommitResult{}, ErrSessionBusy
	case StateStaged, StateReviewing, StateFailed:
	default:
		s.mu.Unlock()
		return CommitResult{}, fmt.Errorf("%w: cannot commit from %s", ErrInvalidTransition, s.state)
	}

	for _, f := range s.farmers {
		s.opts.Validator.Apply(f)
	}
	if !s.statsLocked().Ready {
		s.mu.Unlock()
		return CommitResult{}, ErrNotReady
	}

	prev := s.state
	s.state = StateCommitting
	farmers := s.farmersLocked()
	refs := s.opts.Validator.Refs
	defaultOrg := s.opts.DefaultOrganization
	s.mu.Unlock()

	result, committed := commitFarmers(ctx, c, refs, defaultOrg, farmers)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.farmers[:0]
	for _, f := range s.farmers {
		if !committed[f.ID] {
			kept = append(kept, f)
		}
	}
	s.farmers = kept
	s.lastResult = &result
	s.lastErr = nil
	s.touchedAt = time.Now()

	switch {
	case result.Failed > 0:
		s.state = StateFailed
	case len(s.farmers) == 0:
		s.state = StateDone
	case result.Successful == 0:
		s.state = prev
	default:
		s.state = StateReviewing
	}
	return result, nil
}
