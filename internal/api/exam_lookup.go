package api

import "net/http"

// emptyObject is the fixed body of the exam lookup endpoint
var emptyObject = []byte(`{}`)

// ExamLookupHandler serves GET /exames/{usuarioId}. The user segment is
// accepted as-is and the response is always an empty JSON object.
func ExamLookupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(emptyObject)
	}
}
