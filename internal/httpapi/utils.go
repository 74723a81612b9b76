package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/verder-helpen/auth-test/internal/config"
	"github.com/verder-helpen/auth-test/internal/dto"
)

// ErrorResponse is the canonical error envelope returned by the plugin.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	code := strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func validateRequest(body dto.StartAuthRequest) error {
	if err := config.Validate(body); err != nil {
		return errors.New("attributes and continuation are required")
	}
	return nil
}
