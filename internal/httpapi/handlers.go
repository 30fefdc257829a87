package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"riverbank/internal/model"
	"riverbank/internal/riverbank"
)

// maxBodyBytes bounds request bodies; the longest valid payload is a few KB.
const maxBodyBytes = 64 << 10

type throwRequest struct {
	Message  string `json:"message"`
	Nickname string `json:"nickname"`
	Country  string `json:"country"`
}

type throwResponse struct {
	Sent     bool                 `json:"sent"`
	Received []model.PublicBottle `json:"received"`
}

type reportResponse struct {
	Reported    bool  `json:"reported"`
	ReportCount int64 `json:"reportCount"`
}

type reactRequest struct {
	Emoji  json.RawMessage `json:"emoji"`
	Action string          `json:"action"`
}

// emoji returns the emoji when the field is a JSON string. Any other value
// yields "" so the service rejects it as an invalid emoji.
func (req reactRequest) emoji() string {
	var emoji string
	if err := json.Unmarshal(req.Emoji, &emoji); err != nil {
		return ""
	}
	return emoji
}

type reactResponse struct {
	Reacted        bool             `json:"reacted"`
	ReactionCounts map[string]int64 `json:"reactionCounts"`
	Action         string           `json:"action"`
}

type submittedResponse struct {
	Submitted bool `json:"submitted"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleThrow(w http.ResponseWriter, r *http.Request) {
	var req throwRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.Throw(r.Context(), riverbank.ThrowRequest{
		Message:  req.Message,
		Nickname: req.Nickname,
		Country:  req.Country,
		Origin:   s.origin(r),
	})
	if err != nil {
		s.fail(w, r, "throw", err)
		return
	}

	s.metrics.Outcome("throw", "ok")
	writeJSON(w, http.StatusOK, throwResponse{Sent: res.Sent, Received: res.Received})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Report(r.Context(), mux.Vars(r)["id"], s.origin(r))
	if err != nil {
		s.fail(w, r, "report", err)
		return
	}

	s.metrics.Outcome("report", "ok")
	writeJSON(w, http.StatusOK, reportResponse{Reported: true, ReportCount: count})
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.React(r.Context(), riverbank.ReactRequest{
		BottleID: mux.Vars(r)["id"],
		Emoji:    req.emoji(),
		Action:   req.Action,
		Origin:   s.origin(r),
	})
	if err != nil {
		s.fail(w, r, "react", err)
		return
	}

	s.metrics.Outcome("react", "ok")
	writeJSON(w, http.StatusOK, reactResponse{
		Reacted:        true,
		ReactionCounts: res.ReactionCounts,
		Action:         string(res.Action),
	})
}

func (s *Server) handleFalsePositive(w http.ResponseWriter, r *http.Request) {
	var req throwRequest
	if !s.decode(w, r, &req) {
		return
	}

	_, err := s.svc.SubmitFalsePositive(r.Context(), riverbank.FalsePositiveRequest{
		Message:  req.Message,
		Nickname: req.Nickname,
		Country:  req.Country,
		Origin:   s.origin(r),
	})
	if err != nil {
		s.fail(w, r, "false_positive", err)
		return
	}

	s.metrics.Outcome("false_positive", "ok")
	writeJSON(w, http.StatusOK, submittedResponse{Submitted: true})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// decode reads a single JSON value into v. An empty body decodes as an empty
// object. It writes a 400 and returns false on malformed input or trailing data.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(v)
	if err == nil {
		err = dec.Decode(&json.RawMessage{})
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, reasonInvalidRequest, msgInvalidRequest)
	return false
}
