package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleRegisterSubmission(w http.ResponseWriter, r *http.Request) {
	var req model.SubmissionRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	subject, err := s.runService.RegisterSubmission(r.Context(), req, actorOf(r))
	if err != nil {
		logger.Error("error registering submission", zap.String("subject", req.SubjectId), zap.Error(err))
		respondWithStatus(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, subject)
}

func (s *Server) HandleGetSubmission(w http.ResponseWriter, r *http.Request) {
	subject, err := s.runService.GetSubmission(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithStatus(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, subject)
}

func (s *Server) HandleListArtifacts(w http.ResponseWriter, r *http.Request) {
	subjectId := mux.Vars(r)["id"]
	artifacts, err := s.runService.Artifacts(r.Context(), subjectId)
	if err != nil {
		respondWithStatus(w, err)
		return
	}
	respondOK(w, map[string]any{"subject_id": subjectId, "artifacts": artifacts})
}
