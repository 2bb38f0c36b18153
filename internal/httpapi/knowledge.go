package httpapi

import (
	"net/http"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// handleUpsertSource creates or updates a KnowledgeSource row.
func (s *Server) handleUpsertSource(w http.ResponseWriter, r *http.Request) {
	var src domain.KnowledgeSource
	if err := decodeJSON(r, &src); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if src.SourceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_id is required"})
		return
	}

	saved, err := s.repo.UpsertSource(r.Context(), src)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type ingestChunksRequest struct {
	SourceID        string                 `json:"source_id"`
	Chunks          []domain.KnowledgeChunk `json:"chunks"`
	ReplaceExisting bool                   `json:"replace_existing"`
}

type ingestChunksResponse struct {
	Ingested int `json:"ingested"`
}

// handleIngestChunksBatch stores a batch of pre-embedded chunks for an
// already-registered source.
func (s *Server) handleIngestChunksBatch(w http.ResponseWriter, r *http.Request) {
	var req ingestChunksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.SourceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_id is required"})
		return
	}

	count, err := s.repo.IngestChunks(r.Context(), req.SourceID, req.Chunks, req.ReplaceExisting)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestChunksResponse{Ingested: count})
}
