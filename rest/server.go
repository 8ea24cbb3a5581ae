package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/service"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ACTOR_HEADER string = "X-Actor"

type Server struct {
	http.Server
	Port       int
	runService *service.RunService
	stub       *governance.StubSystems
	recovery   *service.RecoveryService
}

// NewServer builds the HTTP surface. When stub is not nil the governance
// systems it simulates are served under /internal/v1.
func NewServer(httpPort int, runService *service.RunService, stub *governance.StubSystems) (*Server, error) {
	if runService == nil {
		return nil, errors.New("run service is required")
	}
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		runService: runService,
		stub:       stub,
		Port:       httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)

	router.HandleFunc("/v1/submissions", s.HandleRegisterSubmission).Methods(http.MethodPost)
	router.HandleFunc("/v1/submissions/{id}", s.HandleGetSubmission).Methods(http.MethodGet)
	router.HandleFunc("/v1/subjects/{id}/artifacts", s.HandleListArtifacts).Methods(http.MethodGet)

	router.HandleFunc("/v1/runs", s.HandleStartRun).Methods(http.MethodPost)
	router.HandleFunc("/v1/runs/{id}", s.HandleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/v1/runs/{id}/status", s.HandleGetRunStatus).Methods(http.MethodGet)
	router.HandleFunc("/v1/runs/{id}/execute", s.HandleExecuteRun).Methods(http.MethodPost)
	router.HandleFunc("/v1/runs/{id}/resume", s.HandleResumeRun).Methods(http.MethodPost)
	router.HandleFunc("/v1/runs/{id}/cancel", s.HandleCancelRun).Methods(http.MethodPost)
	router.HandleFunc("/v1/runs/{id}/audit", s.HandleGetAudit).Methods(http.MethodGet)
	router.HandleFunc("/v1/runs/{id}/checkpoints", s.HandleGetCheckpoints).Methods(http.MethodGet)

	if stub != nil {
		internal := router.PathPrefix("/internal/v1").Subrouter()
		internal.HandleFunc("/registration/{id}/status", s.HandleRegistrationStatus).Methods(http.MethodGet)
		internal.HandleFunc("/policy/requirements", s.HandlePolicyRequirements).Methods(http.MethodPost)
		internal.HandleFunc("/approvals/{id}/status", s.HandleApprovalStatus).Methods(http.MethodGet)
		internal.HandleFunc("/evaluations/{id}/status", s.HandleEvaluationStatus).Methods(http.MethodGet)
		internal.HandleFunc("/evaluations/{id}/trigger", s.HandleTriggerEvaluations).Methods(http.MethodPost)
		internal.HandleFunc("/artifacts/{id}/status", s.HandleArtifactStatus).Methods(http.MethodGet)
		internal.HandleFunc("/artifacts/{id}/{type}", s.HandleUpsertArtifact).Methods(http.MethodPut)
		internal.HandleFunc("/registration/{id}/link-external", s.HandleLinkExternal).Methods(http.MethodPost)
		internal.HandleFunc("/hydra/{id}/readiness", s.HandleDeploymentReadiness).Methods(http.MethodGet)
		internal.HandleFunc("/netsec/{id}/baseline", s.HandleNetsecBaseline).Methods(http.MethodGet)
		internal.HandleFunc("/firewall/{id}/check", s.HandleFirewallCheck).Methods(http.MethodGet)
	}

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

// SetRecoveryService makes /health report the state of the recovery sweep.
func (s *Server) SetRecoveryService(recovery *service.RecoveryService) {
	s.recovery = recovery
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok"}
	if s.recovery != nil {
		recovery := "stopped"
		if s.recovery.IsRunning() {
			recovery = "running"
		}
		out["recovery"] = recovery
	}
	respondOK(w, out)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI, zap.String("method", r.Method), zap.String("actor", actorOf(r)))
		next.ServeHTTP(w, r)
	})
}

func actorOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ACTOR_HEADER))
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithStatus writes err with the HTTP status matching its gRPC code.
// Errors that carry no status are internal.
func respondWithStatus(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithError(w, httpStatusOf(st.Code()), st.Message())
}

func httpStatusOf(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
