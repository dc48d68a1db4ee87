package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/JonMunkholm/farmerimport/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// maxJSONBody caps PATCH and manual-entry bodies.
const maxJSONBody = 1 << 20

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 1 << 20

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// handleStatus reports liveness and parse capacity.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
		"parses":   s.service.Limiter().Status(),
	})
}

// handleTemplate streams the blank import workbook.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.WriteTemplate(r.Context(), &buf); err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", core.MediaTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="farmer-import-template.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("template write interrupted", "error", err)
	}
}

func (s *Server) handleReferenceData(w http.ResponseWriter, r *http.Request) {
	refs, err := s.service.ReferenceData(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, refs)
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultHistoryLimit)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	recs, err := s.service.RecentImports(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []core.ImportRecord{}
	}
	writeJSON(w, recs)
}

// ----------------------------------------------------------------------------
// Sessions
// ----------------------------------------------------------------------------

type createImportRequest struct {
	DefaultOrganization string `json:"defaultOrganization"`
}

func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondError(w, r, err)
		return
	}

	sess, err := s.service.CreateSession(r.Context(), req.DefaultOrganization)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/imports/"+sess.ID)
	writeJSONStatus(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, sess.Snapshot())
}

func (s *Server) handleDeleteImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload selects the posted file and parses it. The response is the
// session snapshot, including when the parse failed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, err := s.readFileInput(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	snap, err := s.service.Upload(r.Context(), chi.URLParam(r, "id"), file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// readFileInput reads the "file" part of a multipart upload.
func (s *Server) readFileInput(w http.ResponseWriter, r *http.Request) (core.FileInput, error) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return core.FileInput{}, fmt.Errorf("%w: exceeds %d bytes", core.ErrFileTooLarge, maxSize)
		}
		return core.FileInput{}, errBadRequest("expected a multipart form with a file field")
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return core.FileInput{}, errBadRequest("no file provided")
	}
	defer f.Close()

	data, err := core.ReadUpload(f, maxSize)
	if err != nil {
		return core.FileInput{}, err
	}
	return core.FileInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := sess.RemoveFile(); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, sess.Snapshot())
}

// ----------------------------------------------------------------------------
// Staged records
// ----------------------------------------------------------------------------

// handleListFarmers lists staged farmers. ?status=valid or ?status=invalid
// narrows the list.
func (s *Server) handleListFarmers(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	farmers := sess.Farmers()
	switch r.URL.Query().Get("status") {
	case "":
	case "valid":
		farmers = filterFarmers(farmers, true)
	case "invalid":
		farmers = filterFarmers(farmers, false)
	default:
		respondError(w, r, errBadRequest(`status must be "valid" or "invalid"`))
		return
	}
	writeJSON(w, farmers)
}

func filterFarmers(farmers []*core.StagedFarmer, eligible bool) []*core.StagedFarmer {
	out := make([]*core.StagedFarmer, 0, len(farmers))
	for _, f := range farmers {
		if core.Eligible(f) == eligible {
			out = append(out, f)
		}
	}
	return out
}

func (s *Server) handleListFarms(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, sess.Farms())
}

func (s *Server) handleUpdateFarmer(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	body, err := readJSONBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := decodeFarmerPatch(body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	farmer, err := sess.UpdateFarmer(chi.URLParam(r, "farmerID"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.ForSession(r.Context(), sess.ID).Debug("farmer updated", "farmer_id", farmer.ID, "valid", farmer.IsValid)
	writeJSON(w, farmer)
}

func (s *Server) handleUpdateFarm(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	body, err := readJSONBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := decodeFarmPatch(body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	farmer, err := sess.UpdateFarm(chi.URLParam(r, "farmerID"), chi.URLParam(r, "farmID"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, farmer)
}

func (s *Server) handleDeleteFarmer(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := sess.DeleteFarmer(chi.URLParam(r, "farmerID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, sess.Stats())
}

func (s *Server) handleDeleteFarm(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	farmer, err := sess.DeleteFarm(chi.URLParam(r, "farmerID"), chi.URLParam(r, "farmID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, farmer)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	stats, err := sess.ValidateAll()
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// handleCommit writes the session's eligible farmers. A commit with row
// failures still answers 200; the result lists them.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := withRequestMetadata(r.Context(), r)
	res, err := s.service.Commit(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ----------------------------------------------------------------------------
// Manual entry
// ----------------------------------------------------------------------------

type createFarmerRequest struct {
	Farmer core.FarmerData `json:"farmer"`
	Farms  []core.FarmData `json:"farms"`
}

// handleCreateFarmer validates and saves one farmer. Validation failures
// answer 422 with the per-field errors.
func (s *Server) handleCreateFarmer(w http.ResponseWriter, r *http.Request) {
	var req createFarmerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.service.CreateFarmer(withRequestMetadata(r.Context(), r), req.Farmer, req.Farms)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if res.Created == nil {
		writeJSONStatus(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// ----------------------------------------------------------------------------
// Request decoding
// ----------------------------------------------------------------------------

// decodeJSON decodes the request body into v, rejecting unknown fields.
// With allowEmpty an empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	body, err := readJSONBody(w, r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return errBadRequest("request body is empty")
	}
	return strictUnmarshal(body, v)
}

func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, errBadRequest("request body too large")
		}
		return nil, errBadRequest("could not read request body")
	}
	return body, nil
}

func strictUnmarshal(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// decodeFarmerPatch decodes a farmer PATCH body. An explicit null clears a
// numeric field; an absent field is left alone.
func decodeFarmerPatch(body []byte) (core.FarmerPatch, error) {
	var patch core.FarmerPatch
	if err := strictUnmarshal(body, &patch); err != nil {
		return patch, err
	}
	nulls, err := nullFields(body)
	if err != nil {
		return patch, err
	}
	if nulls["householdSize"] {
		patch.HouseholdSize = &pgtype.Int4{}
	}
	return patch, nil
}

// decodeFarmPatch decodes a farm PATCH body, with the same null rule.
func decodeFarmPatch(body []byte) (core.FarmPatch, error) {
	var patch core.FarmPatch
	if err := strictUnmarshal(body, &patch); err != nil {
		return patch, err
	}
	nulls, err := nullFields(body)
	if err != nil {
		return patch, err
	}
	if nulls["acreage"] {
		patch.Acreage = &pgtype.Float8{}
	}
	if nulls["locationLat"] {
		patch.LocationLat = &pgtype.Float8{}
	}
	if nulls["locationLng"] {
		patch.LocationLng = &pgtype.Float8{}
	}
	return patch, nil
}

// nullFields returns the top-level keys whose value is JSON null.
func nullFields(body []byte) (map[string]bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errBadRequest("request body must be a JSON object")
	}
	nulls := make(map[string]bool)
	for k, v := range raw {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			nulls[k] = true
		}
	}
	return nulls, nil
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
