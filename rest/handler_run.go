package rest

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	var req model.RunRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SubjectId) == "" {
		respondWithError(w, http.StatusBadRequest, "subject_id is required")
		return
	}
	out, err := s.runService.Start(r.Context(), req.SubjectId, actorOf(r))
	if err != nil {
		logger.Error("error starting run", zap.String("subject", req.SubjectId), zap.Error(err))
		respondWithStatus(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	view, err := s.runService.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithStatus(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (s *Server) HandleGetRunStatus(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	status, err := s.runService.Status(r.Context(), runId)
	if err != nil {
		respondWithStatus(w, err)
		return
	}
	respondOK(w, map[string]any{"run_id": runId, "status": status})
}

func (s *Server) HandleExecuteRun(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	out, err := s.runService.Execute(r.Context(), runId)
	if err != nil {
		logger.Error("error executing run", zap.String("run", runId), zap.Error(err))
		respondWithStatus(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) HandleResumeRun(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	var req model.ResumeRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Decision.Action = model.DecisionAction(strings.ToUpper(strings.TrimSpace(string(req.Decision.Action))))
	out, err := s.runService.Resume(r.Context(), runId, req.Decision, actorOf(r))
	if err != nil {
		logger.Error("error resuming run", zap.String("run", runId), zap.Error(err))
		respondWithStatus(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	out, err := s.runService.Cancel(r.Context(), runId)
	if err != nil {
		logger.Error("error cancelling run", zap.String("run", runId), zap.Error(err))
		respondWithStatus(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	audit, err := s.runService.Audit(r.Context(), runId)
	if err != nil {
		respondWithStatus(w, err)
		return
	}
	respondOK(w, map[string]any{"run_id": runId, "audit": audit})
}

func (s *Server) HandleGetCheckpoints(w http.ResponseWriter, r *http.Request) {
	runId := mux.Vars(r)["id"]
	cps, err := s.runService.Checkpoints(r.Context(), runId)
	if err != nil {
		respondWithStatus(w, err)
		return
	}
	respondOK(w, map[string]any{"run_id": runId, "checkpoints": cps})
}
