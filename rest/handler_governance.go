package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/model"
)

// The handlers below serve the simulated governance systems in the shape the
// governance HTTP client reads.

func (s *Server) HandleRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	out, err := s.stub.RegistrationStatus(r.Context(), mux.Vars(r)["id"])
	respondWithGovernance(w, out, err)
}

func (s *Server) HandlePolicyRequirements(w http.ResponseWriter, r *http.Request) {
	var req governance.PolicyRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.stub.PolicyRequirements(r.Context(), req)
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleApprovalStatus(w http.ResponseWriter, r *http.Request) {
	out, err := s.stub.ApprovalStatus(r.Context(), mux.Vars(r)["id"])
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleEvaluationStatus(w http.ResponseWriter, r *http.Request) {
	out, err := s.stub.EvaluationStatus(r.Context(), mux.Vars(r)["id"])
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleTriggerEvaluations(w http.ResponseWriter, r *http.Request) {
	var req governance.TriggerRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.stub.TriggerEvaluations(r.Context(), mux.Vars(r)["id"], req.Evaluations)
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleArtifactStatus(w http.ResponseWriter, r *http.Request) {
	out, err := s.stub.ArtifactStatus(r.Context(), mux.Vars(r)["id"])
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleUpsertArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var artifact model.GeneratedArtifact
	if err := decode(r, &artifact); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if artifact.Type == "" {
		artifact.Type = vars["type"]
	}
	if artifact.Type != vars["type"] {
		respondWithError(w, http.StatusBadRequest, "artifact type does not match the path")
		return
	}
	out, err := s.stub.UpsertArtifact(r.Context(), vars["id"], artifact)
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleLinkExternal(w http.ResponseWriter, r *http.Request) {
	var req governance.LinkExternalRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.stub.LinkExternal(r.Context(), mux.Vars(r)["id"], req)
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleDeploymentReadiness(w http.ResponseWriter, r *http.Request) {
	out, err := s.stub.DeploymentReadiness(r.Context(), mux.Vars(r)["id"])
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleNetsecBaseline(w http.ResponseWriter, r *http.Request) {
	out, err := s.stub.NetsecBaseline(r.Context(), mux.Vars(r)["id"])
	respondWithGovernance(w, out, err)
}

func (s *Server) HandleFirewallCheck(w http.ResponseWriter, r *http.Request) {
	out, err := s.stub.FirewallCheck(r.Context(), mux.Vars(r)["id"])
	respondWithGovernance(w, out, err)
}

// respondWithGovernance maps a contract violation to 422 and anything else to
// 503, which the client retries.
func respondWithGovernance(w http.ResponseWriter, out any, err error) {
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, out)
	case governance.IsContractError(err):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	}
}
