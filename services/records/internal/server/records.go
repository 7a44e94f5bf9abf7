package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"recordbook/internal/util"
	"recordbook/pkg/domain"
	"recordbook/services/records/internal/app"
)

const (
	formName  = "u_name"
	formAge   = "u_age"
	formCity  = "u_city"
	formHobby = "u_hobby"
)

// requireStore writes the dependency-unavailable response through fail when
// the store handle was never established.
func (s *Server) requireStore(w http.ResponseWriter, fail failureWriter) bool {
	if s.app.Available() {
		return true
	}
	fail(w, http.StatusInternalServerError, app.ErrStoreUnavailable.Error())
	return false
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.requireStore(w, writeError) {
		return
	}
	fields, err := s.decodeFields(w, r)
	if err != nil {
		util.LoggerFromContext(r.Context()).Debug("invalid record body", "err", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := s.app.CreateRecord(r.Context(), fields)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("insert record failed", "err", err)
		writeError(w, http.StatusInternalServerError, "database operation failed")
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true, Message: "record saved", ID: id})
}

func (s *Server) handleShowOne(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.requireStore(w, writeError) {
		return
	}
	record, ok, err := s.app.FirstRecord(r.Context())
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("find record failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleShowMany(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.requireStore(w, writeError) {
		return
	}
	records, err := s.app.ListRecords(r.Context())
	s.writeRecords(w, r, records, err)
}

func (s *Server) handleFiltered(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.requireStore(w, writeError) {
		return
	}
	records, err := s.app.ListFiltered(r.Context())
	s.writeRecords(w, r, records, err)
}

func (s *Server) writeRecords(w http.ResponseWriter, r *http.Request, records []domain.Record, err error) {
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("list records failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// /delete/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/delete/")
	if !ok {
		writeFailure(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireStore(w, writeFailure) {
		return
	}
	err := s.app.DeleteRecord(r.Context(), id)
	if err != nil {
		s.writeRecordError(w, r, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true, Message: "record deleted"})
}

// /update/{id}
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/update/")
	if !ok {
		writeFailure(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPut {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireStore(w, writeFailure) {
		return
	}
	if !domain.ValidRecordID(id) {
		writeFailure(w, http.StatusBadRequest, app.ErrInvalidID.Error())
		return
	}
	fields, err := s.decodeFields(w, r)
	if err != nil {
		util.LoggerFromContext(r.Context()).Debug("invalid record body", "err", err)
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.app.UpdateRecord(r.Context(), id, fields); err != nil {
		s.writeRecordError(w, r, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true})
}

func (s *Server) writeRecordError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, app.ErrStoreUnavailable):
		writeFailure(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, app.ErrInvalidID):
		writeFailure(w, http.StatusBadRequest, app.ErrInvalidID.Error())
	case errors.Is(err, app.ErrNotFound):
		writeFailure(w, http.StatusNotFound, app.ErrNotFound.Error())
	case errors.Is(err, app.ErrNotModified):
		writeFailure(w, http.StatusNotFound, app.ErrNotModified.Error())
	default:
		util.LoggerFromContext(r.Context()).Error(op+" record failed", "err", err)
		writeFailure(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(r *http.Request, prefix string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// decodeFields reads the four record fields from a JSON or form body.
// Bodies of other content types carry no fields, so every field is cleared.
func (s *Server) decodeFields(w http.ResponseWriter, r *http.Request) (domain.Fields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return decodeJSONFields(r.Body)
	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return domain.Fields{}, fmt.Errorf("parse form: %w", err)
		}
		return formFields(r), nil
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(s.maxBodyBytes); err != nil {
			return domain.Fields{}, fmt.Errorf("parse multipart form: %w", err)
		}
		return formFields(r), nil
	default:
		return domain.Fields{}, nil
	}
}

func decodeJSONFields(body io.Reader) (domain.Fields, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Fields{}, nil
		}
		return domain.Fields{}, fmt.Errorf("decode json: %w", err)
	}
	var (
		fields domain.Fields
		err    error
	)
	if fields.Name, err = jsonField(raw, formName); err != nil {
		return domain.Fields{}, err
	}
	if fields.Age, err = jsonField(raw, formAge); err != nil {
		return domain.Fields{}, err
	}
	if fields.City, err = jsonField(raw, formCity); err != nil {
		return domain.Fields{}, err
	}
	if fields.Hobby, err = jsonField(raw, formHobby); err != nil {
		return domain.Fields{}, err
	}
	return fields, nil
}

func jsonField(raw map[string]any, key string) (*string, error) {
	v, err := domain.FieldText(raw[key])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func formFields(r *http.Request) domain.Fields {
	return domain.Fields{
		Name:  formField(r, formName),
		Age:   formField(r, formAge),
		City:  formField(r, formCity),
		Hobby: formField(r, formHobby),
	}
}

func formField(r *http.Request, key string) *string {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return domain.Text(values[0])
}
