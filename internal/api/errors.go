package api

import (
	"encoding/json"
	"net/http"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/logx"
)

func errorBody(status int) map[string]string {
	return map[string]string{"error": http.StatusText(status)}
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody(status)); err != nil {
		logx.Log.Error().Err(err).Msg("encode error response")
	}
}
