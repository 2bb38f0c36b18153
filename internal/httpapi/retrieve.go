package httpapi

import (
	"net/http"

	"github.com/newgpp/parksuite-core/internal/domain"
)

type retrieveRequest struct {
	Query           string   `json:"query"`
	TopK            int      `json:"top_k"`
	DocType         *string  `json:"doc_type,omitempty"`
	SourceType      *string  `json:"source_type,omitempty"`
	CityCode        *string  `json:"city_code,omitempty"`
	LotCode         *string  `json:"lot_code,omitempty"`
	SourceIDs       []string `json:"source_ids,omitempty"`
	IncludeInactive bool     `json:"include_inactive"`
}

type retrieveResponse struct {
	Items []domain.RetrievedItem `json:"items"`
	Count int                    `json:"count"`
}

// handleRetrieve runs a standalone retrieval call, outside the hybrid
// answer workflow, against the same knowledge.Repository the workflow's
// rag_retrieve node uses.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	filter := domain.RetrieveFilter{
		DocType:         req.DocType,
		SourceType:      req.SourceType,
		CityCode:        req.CityCode,
		LotCode:         req.LotCode,
		SourceIDs:       req.SourceIDs,
		IncludeInactive: req.IncludeInactive,
		QueryText:       req.Query,
		TopK:            req.TopK,
	}

	items, err := s.repo.Retrieve(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Items: items, Count: len(items)})
}
