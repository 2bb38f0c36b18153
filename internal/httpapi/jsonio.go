package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/newgpp/parksuite-core/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.Classify(err)
	writeJSON(w, apperr.StatusCode(kind), map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
