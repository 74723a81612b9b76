// Package httpapi implements the Verder Helpen auth-plugin HTTP contract
// for the test plugin: starting a session, completing it from the browser,
// and receiving session activity updates.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/verder-helpen/auth-test/internal/config"
	"github.com/verder-helpen/auth-test/internal/dto"
	"github.com/verder-helpen/auth-test/internal/session"
	"github.com/verder-helpen/auth-test/internal/token"
)

// The core and the browser exchange path segments encoded with padded
// URL-safe base64.
var segmentEncoding = base64.URLEncoding

// RegisterRoutes wires the plugin endpoints onto the provided router.
func RegisterRoutes(r chi.Router, store *config.Store, sessions *session.Service, logger *slog.Logger) {
	h := &handler{
		store:    store,
		sessions: sessions,
		logger:   logger,
		client:   &http.Client{Timeout: 10 * time.Second},
	}

	r.Post("/start_authentication", h.startAuthentication)
	r.Get("/browser/{attributes}/{continuation}", h.browserInline)
	r.Get("/browser/{attributes}/{continuation}/{attrurl}", h.browserOutOfBand)
	r.Post("/session/update", h.sessionUpdate)
	r.Get("/session/updates", h.sessionUpdates)
}

type handler struct {
	store    *config.Store
	sessions *session.Service
	logger   *slog.Logger
	client   *http.Client
}

func (h *handler) startAuthentication(w http.ResponseWriter, r *http.Request) {
	var body dto.StartAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validateRequest(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := h.store.Current()
	if err := cfg.VerifyAttributes(body.Attributes); err != nil {
		if errors.Is(err, config.ErrUnknownAttribute) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("attribute verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	attrsJSON, err := json.Marshal(body.Attributes)
	if err != nil {
		h.logger.Error("encode attributes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	attributes := segmentEncoding.EncodeToString(attrsJSON)
	continuation := segmentEncoding.EncodeToString([]byte(body.Continuation))

	clientURL := fmt.Sprintf("%s/browser/%s/%s", cfg.ServerURL, attributes, continuation)
	if body.AttrURL != nil {
		clientURL += "/" + segmentEncoding.EncodeToString([]byte(*body.AttrURL))
	}

	writeJSON(w, http.StatusOK, dto.StartAuthResponse{ClientURL: clientURL})
}

// browserInline finishes the session and hands the sealed result to the
// continuation URL as a result query parameter.
func (h *handler) browserInline(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Current()

	sealed, continuation, ok := h.completeSession(w, r, cfg)
	if !ok {
		return
	}

	separator := "?"
	if strings.Contains(continuation, "?") {
		separator = "&"
	}

	h.logger.Info("redirecting user with inline result", "continuation", continuation)
	http.Redirect(w, r, continuation+separator+"result="+sealed, http.StatusSeeOther)
}

// browserOutOfBand finishes the session, posts the sealed result to the
// attribute URL, and redirects the browser without the result attached.
// Delivery failures are logged but never shown to the user.
func (h *handler) browserOutOfBand(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Current()

	sealed, continuation, ok := h.completeSession(w, r, cfg)
	if !ok {
		return
	}

	attrURL, ok := h.decodeText(w, chi.URLParam(r, "attrurl"))
	if !ok {
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, attrURL, strings.NewReader(sealed))
	if err != nil {
		h.logger.Error("failure reporting results", "attr_url", attrURL, "error", err)
	} else {
		req.Header.Set("Content-Type", "application/jwt")
		resp, err := h.client.Do(req)
		if err != nil {
			h.logger.Error("failure reporting results", "attr_url", attrURL, "error", err)
		} else {
			resp.Body.Close()
			h.logger.Info("reported result", "attr_url", attrURL, "status", resp.StatusCode)
		}
	}

	h.logger.Info("redirecting user", "continuation", continuation)
	http.Redirect(w, r, continuation, http.StatusSeeOther)
}

// completeSession decodes the browser path segments, maps the requested
// attributes to their configured values, and seals the auth result. On
// failure it writes the error response and reports ok=false.
func (h *handler) completeSession(w http.ResponseWriter, r *http.Request, cfg config.Config) (sealed, continuation string, ok bool) {
	rawAttrs, err := segmentEncoding.DecodeString(chi.URLParam(r, "attributes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "attributes segment is not valid base64")
		return "", "", false
	}

	var requested []string
	if err := json.Unmarshal(rawAttrs, &requested); err != nil {
		writeError(w, http.StatusBadRequest, "attributes segment is not a JSON string list")
		return "", "", false
	}

	attributes, err := cfg.MapAttributes(requested)
	if err != nil {
		if errors.Is(err, config.ErrUnknownAttribute) {
			writeError(w, http.StatusBadRequest, err.Error())
			return "", "", false
		}
		h.logger.Error("attribute mapping failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return "", "", false
	}

	result := dto.AuthResult{
		Status:     dto.StatusSuccess,
		Attributes: attributes,
		SessionURL: cfg.SessionURL(),
	}

	sealer := token.NewSealer(cfg.SigningPrivateKey(), cfg.EncryptionPublicKey())
	sealed, err = sealer.Seal(result)
	if err != nil {
		h.logger.Error("sealing auth result failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return "", "", false
	}

	continuation, ok = h.decodeText(w, chi.URLParam(r, "continuation"))
	if !ok {
		return "", "", false
	}

	return sealed, continuation, true
}

// decodeText decodes a base64 path segment that must hold UTF-8 text.
func (h *handler) decodeText(w http.ResponseWriter, segment string) (string, bool) {
	raw, err := segmentEncoding.DecodeString(segment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "segment is not valid base64")
		return "", false
	}
	if !utf8.Valid(raw) {
		writeError(w, http.StatusBadRequest, "segment is not valid UTF-8")
		return "", false
	}
	return string(raw), true
}

func (h *handler) sessionUpdate(w http.ResponseWriter, r *http.Request) {
	activity, err := dto.ParseSessionActivity(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	update, err := h.sessions.Record(r.Context(), activity)
	if err != nil {
		h.logger.Error("recording session update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("session update received", "activity", update.Activity, "id", update.ID)
	w.WriteHeader(http.StatusOK)
}

type sessionUpdatesResponse struct {
	Data []session.Update `json:"data"`
}

// sessionUpdates lets integration tests read back the updates the core
// delivered.
func (h *handler) sessionUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.sessions.Updates(r.Context())
	if err != nil {
		h.logger.Error("listing session updates failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, sessionUpdatesResponse{Data: updates})
}
