package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dualvote-backend/models"
	"dualvote-backend/service"
)

// Server exposes the casting, verification, tally and election admin
// operations over HTTP. Authentication and session handling are upstream
// collaborators: requests arrive with an already-verified voter ID.
type Server struct {
	router    *chi.Mux
	elections *service.ElectionService
	tally     *service.TallyService
	receipts  *service.ReceiptService
	queue     *service.CastQueue
	metrics   *service.MetricsCollector
}

// Config wires the services into a new Server.
type Config struct {
	Elections *service.ElectionService
	Tally     *service.TallyService
	Receipts  *service.ReceiptService
	Queue     *service.CastQueue
	Metrics   *service.MetricsCollector
}

func NewServer(conf Config) *Server {
	s := &Server{
		elections: conf.Elections,
		tally:     conf.Tally,
		receipts:  conf.Receipts,
		queue:     conf.Queue,
		metrics:   conf.Metrics,
	}
	s.initRouter()
	return s
}

// Router returns the HTTP handler, also used directly by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) initRouter() {
	s.router = chi.NewRouter()
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}).Handler)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Throttle(100))
	s.router.Use(middleware.Timeout(45 * time.Second))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/elections", s.handleCreateElection)
		r.Get("/elections", s.handleListElections)
		r.Get("/elections/{electionID}", s.handleGetElection)
		r.Post("/elections/{electionID}/open", s.handleOpenVoting)
		r.Post("/elections/{electionID}/close", s.handleCloseVoting)
		r.Post("/elections/{electionID}/tally", s.handleTally)
		r.Get("/elections/{electionID}/results", s.handleResults)
		r.Post("/vote", s.handleCastVote)
		r.Get("/verify/{receiptID}", s.handleVerifyReceipt)
		r.Get("/status", s.handleStatus)
	})
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var params service.ElectionParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	election, err := s.elections.CreateElection(params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, election)
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.elections.Elections())
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	election, err := s.elections.Election(chi.URLParam(r, "electionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, election)
}

func (s *Server) handleOpenVoting(w http.ResponseWriter, r *http.Request) {
	if err := s.elections.OpenVoting(chi.URLParam(r, "electionID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCloseVoting(w http.ResponseWriter, r *http.Request) {
	if err := s.elections.CloseVoting(chi.URLParam(r, "electionID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	result, err := s.tally.TallyElection(chi.URLParam(r, "electionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	result, err := s.tally.Results(chi.URLParam(r, "electionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req models.CastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.VoterID == "" || req.ElectionID == "" || req.CandidateID == "" || req.PartyID == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	result := <-s.queue.Enqueue(req)
	if result.Err != nil {
		writeError(w, result.Err)
		return
	}
	writeJSON(w, http.StatusOK, result.Receipt)
}

func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	verification, err := s.receipts.Verify(chi.URLParam(r, "receiptID"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.RecordVerification(time.Since(started))
	writeJSON(w, http.StatusOK, verification)
}

type electionSummary struct {
	ElectionID string                `json:"election_id"`
	Name       string                `json:"name"`
	Status     models.ElectionStatus `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	elections := s.elections.Elections()
	summaries := make([]electionSummary, 0, len(elections))
	for _, e := range elections {
		summaries = append(summaries, electionSummary{
			ElectionID: e.ElectionID,
			Name:       e.Name,
			Status:     e.Status,
		})
	}

	response := struct {
		Elections []electionSummary       `json:"elections"`
		Metrics   service.MetricsSnapshot `json:"metrics"`
	}{
		Elections: summaries,
		Metrics:   s.metrics.Snapshot(),
	}
	writeJSON(w, http.StatusOK, response)
}
