package httpapi

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verder-helpen/auth-test/internal/config"
	"github.com/verder-helpen/auth-test/internal/dto"
	"github.com/verder-helpen/auth-test/internal/server"
	"github.com/verder-helpen/auth-test/internal/session"
	"github.com/verder-helpen/auth-test/internal/token"
)

type testEnv struct {
	router   http.Handler
	opener   *token.Opener
	store    *config.Store
	sessions *session.Service
}

func newTestEnv(t *testing.T, withSession bool) *testEnv {
	t.Helper()

	signKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	encKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(signKey),
	})
	encDER, err := x509.MarshalPKIXPublicKey(&encKey.PublicKey)
	require.NoError(t, err)
	encPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: encDER})

	contents := fmt.Sprintf(`server_url = "http://localhost:8000"
with_session = %t

signing_key = '''
%s'''

encryption_pubkey = '''
%s'''

[attributes]
email = "test@example.com"
fullname = "Test Person"
`, withSession, signPEM, encPEM)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	store := config.NewStore(cfg)
	sessions := session.NewService(session.NewMemoryRepository(), session.NewSystemClock())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := server.NewRouter("auth-test", func(r chi.Router) {
		RegisterRoutes(r, store, sessions, logger)
	})

	return &testEnv{
		router:   router,
		opener:   token.NewOpener(encKey, &signKey.PublicKey),
		store:    store,
		sessions: sessions,
	}
}

func (env *testEnv) startAuthentication(t *testing.T, body dto.StartAuthRequest) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/start_authentication", strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func browserPath(attributes []string, continuation string, attrURL string) string {
	rawAttrs, _ := json.Marshal(attributes)
	path := "/browser/" + base64.URLEncoding.EncodeToString(rawAttrs) +
		"/" + base64.URLEncoding.EncodeToString([]byte(continuation))
	if attrURL != "" {
		path += "/" + base64.URLEncoding.EncodeToString([]byte(attrURL))
	}
	return path
}

func TestStartAuthenticationBuildsClientURL(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.startAuthentication(t, dto.StartAuthRequest{
		Attributes:   []string{"email"},
		Continuation: "https://core.example.com/done",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.StartAuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	prefix := "http://localhost:8000/browser/"
	require.True(t, strings.HasPrefix(resp.ClientURL, prefix), "client_url %s", resp.ClientURL)

	segments := strings.Split(strings.TrimPrefix(resp.ClientURL, prefix), "/")
	require.Len(t, segments, 2)

	rawAttrs, err := base64.URLEncoding.DecodeString(segments[0])
	require.NoError(t, err)
	var attrs []string
	require.NoError(t, json.Unmarshal(rawAttrs, &attrs))
	assert.Equal(t, []string{"email"}, attrs)

	rawCont, err := base64.URLEncoding.DecodeString(segments[1])
	require.NoError(t, err)
	assert.Equal(t, "https://core.example.com/done", string(rawCont))
}

func TestStartAuthenticationWithAttrURL(t *testing.T) {
	env := newTestEnv(t, false)

	attrURL := "https://core.example.com/collect"
	rec := env.startAuthentication(t, dto.StartAuthRequest{
		Attributes:   []string{"email", "fullname"},
		Continuation: "https://core.example.com/done",
		AttrURL:      &attrURL,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.StartAuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	segments := strings.Split(strings.TrimPrefix(resp.ClientURL, "http://localhost:8000/browser/"), "/")
	require.Len(t, segments, 3)

	rawURL, err := base64.URLEncoding.DecodeString(segments[2])
	require.NoError(t, err)
	assert.Equal(t, attrURL, string(rawURL))
}

func TestStartAuthenticationRejectsUnknownAttribute(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.startAuthentication(t, dto.StartAuthRequest{
		Attributes:   []string{"shoesize"},
		Continuation: "https://core.example.com/done",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "shoesize")
}

func TestStartAuthenticationRejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodPost, "/start_authentication", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.startAuthentication(t, dto.StartAuthRequest{Continuation: "https://core.example.com/done"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrowserInlineRedirectCarriesResult(t *testing.T) {
	env := newTestEnv(t, true)

	continuation := "https://core.example.com/done"
	req := httptest.NewRequest(http.MethodGet, browserPath([]string{"email"}, continuation, ""), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)

	location := rec.Header().Get("Location")
	sealed, found := strings.CutPrefix(location, continuation+"?result=")
	require.True(t, found, "location %s", location)

	result, err := env.opener.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusSuccess, result.Status)
	assert.Equal(t, map[string]string{"email": "test@example.com"}, result.Attributes)
	assert.Equal(t, "http://localhost:8000/session/update", result.SessionURL)
}

func TestBrowserInlineAppendsToExistingQuery(t *testing.T) {
	env := newTestEnv(t, false)

	continuation := "https://core.example.com/done?state=abc"
	req := httptest.NewRequest(http.MethodGet, browserPath([]string{"fullname"}, continuation, ""), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)

	location := rec.Header().Get("Location")
	sealed, found := strings.CutPrefix(location, continuation+"&result=")
	require.True(t, found, "location %s", location)

	result, err := env.opener.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"fullname": "Test Person"}, result.Attributes)
	assert.Empty(t, result.SessionURL)
}

func TestBrowserRejectsMalformedSegments(t *testing.T) {
	env := newTestEnv(t, true)

	// Invalid base64 in the attributes segment.
	req := httptest.NewRequest(http.MethodGet, "/browser/!!!/"+base64.URLEncoding.EncodeToString([]byte("https://x")), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid base64 that does not hold a JSON string list.
	req = httptest.NewRequest(http.MethodGet, "/browser/"+base64.URLEncoding.EncodeToString([]byte("42"))+"/"+base64.URLEncoding.EncodeToString([]byte("https://x")), nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrowserRejectsUnknownAttribute(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodGet, browserPath([]string{"shoesize"}, "https://core.example.com/done", ""), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrowserOutOfBandDeliversResult(t *testing.T) {
	env := newTestEnv(t, true)

	var gotBody string
	var gotContentType string
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	continuation := "https://core.example.com/done"
	req := httptest.NewRequest(http.MethodGet, browserPath([]string{"email"}, continuation, receiver.URL), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	// Out-of-band flow never leaks the result to the browser.
	assert.Equal(t, continuation, rec.Header().Get("Location"))

	assert.Equal(t, "application/jwt", gotContentType)
	result, err := env.opener.Open(gotBody)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"email": "test@example.com"}, result.Attributes)
}

func TestBrowserOutOfBandDeliveryFailureStillRedirects(t *testing.T) {
	env := newTestEnv(t, true)

	receiver := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	attrURL := receiver.URL
	receiver.Close()

	continuation := "https://core.example.com/done"
	req := httptest.NewRequest(http.MethodGet, browserPath([]string{"email"}, continuation, attrURL), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, continuation, rec.Header().Get("Location"))
}

func TestSessionUpdateRecorded(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodPost, "/session/update?type=refresh", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/session/updates", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []session.Update `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, dto.ActivityRefresh, resp.Data[0].Activity)
	assert.NotEmpty(t, resp.Data[0].ID)
}

func TestSessionUpdateRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t, true)

	for _, target := range []string{"/session/update", "/session/update?type=ping"} {
		req := httptest.NewRequest(http.MethodPost, target, nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
