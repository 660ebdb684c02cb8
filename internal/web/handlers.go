package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-gate/internal/engine"
)

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// trackView is the wire form of a tracked face.
type trackView struct {
	TrackID    string     `json:"track_id"`
	Name       string     `json:"name"`
	Matched    bool       `json:"matched"`
	Confidence float64    `json:"confidence"`
	IdentityID string     `json:"identity_id,omitempty"`
	Box        engine.Box `json:"box"`
	LastSeen   time.Time  `json:"last_seen"`
}

type statusResponse struct {
	engine.Status
	PrimaryEndpoint string      `json:"primary_endpoint"`
	Tracks          []trackView `json:"tracks"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status()

	tracks := make([]trackView, 0, len(status.Tracks))
	for _, t := range status.Tracks {
		tracks = append(tracks, trackView{
			TrackID:    t.TrackID,
			Name:       t.Name,
			Matched:    t.Matched,
			Confidence: t.Confidence,
			IdentityID: t.IdentityID,
			Box:        t.Box,
			LastSeen:   t.LastSeen,
		})
	}

	respondJSON(w, http.StatusOK, statusResponse{
		Status:          status,
		PrimaryEndpoint: s.endpoints.Primary(),
		Tracks:          tracks,
	})
}

// identityView deliberately omits the embedding: the API reports who is
// enrolled, never their biometric data.
type identityView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleIdentities(w http.ResponseWriter, r *http.Request) {
	set := s.identities.Snapshot()

	views := make([]identityView, 0, len(set))
	for i := range set {
		views = append(views, identityView{ID: set[i].ID, Name: set[i].Name()})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":      len(views),
		"identities": views,
	})
}

type recognizeResponse struct {
	RequestID string               `json:"request_id"`
	Results   []engine.MatchResult `json:"results"`
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.RecognizeOnce(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if results == nil {
		results = []engine.MatchResult{}
	}

	respondJSON(w, http.StatusOK, recognizeResponse{
		RequestID: uuid.New().String(),
		Results:   results,
	})
}
