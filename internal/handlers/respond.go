// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jason-s-yu/pongarena/internal/lobby"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a lobby rejection kind to its HTTP status. Anything else is a server error.
func statusFor(err error) int {
	switch lobby.KindOf(err) {
	case lobby.KindNotFound:
		return http.StatusNotFound
	case lobby.KindConflict:
		return http.StatusConflict
	case lobby.KindForbidden:
		return http.StatusForbidden
	case lobby.KindIllegalState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports a failed lobby operation. Typed rejections go back verbatim; everything else
// is logged and hidden behind a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: lobby.KindOf(err).String()})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	fields := logrus.Fields{"path": r.URL.Path, "request_id": chimw.GetReqID(r.Context())}
	if errors.Is(err, lobby.ErrPersistence) {
		fields["persistence"] = true
	}
	s.log.WithFields(fields).WithError(err).Error("request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// decodeBody reads an optional JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return v
}
