package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaKr/token-server/internal/token"
)

func testProperties(t *testing.T, dumpEnabled, shutdownEnabled bool) (*Properties, *bool) {
	t.Helper()
	shutdownCalled := false
	return &Properties{
		Store:           token.New(time.Hour, nil),
		Log:             nil,
		DumpEnabled:     dumpEnabled,
		ShutdownEnabled: shutdownEnabled,
		Shutdown:        func() { shutdownCalled = true },
	}, &shutdownCalled
}

func doRequest(h http.Handler, method, path, body, contentType string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestCreateTokenReturnsPlainTextID(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "POST", "/token", `{"meta":{"user":"alice"}}`, "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.String())
}

func TestCreateRejectsWrongContentType(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "POST", "/token", `{"meta":{}}`, "text/plain")

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, 0, p.Store.Len())
}

func TestCreateRejectsNonObjectMeta(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "POST", "/token", `{"meta":"not-an-object"}`, "application/json")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRotateHappyPath(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	create := doRequest(h, "POST", "/token", `{"meta":{"user":"alice"}}`, "application/json")
	oldID := create.Body.String()

	rotate := doRequest(h, "PUT", "/token", `{"token":"`+oldID+`","meta":{"visits":1}}`, "application/json")
	require.Equal(t, http.StatusOK, rotate.Code)

	var env rotateEnvelope
	require.NoError(t, json.Unmarshal(rotate.Body.Bytes(), &env))
	require.NotNil(t, env.Ok)
	assert.NotEqual(t, oldID, env.Ok.Token)
	assert.Equal(t, "alice", env.Ok.Meta["user"])
	assert.EqualValues(t, 1, env.Ok.Meta["visits"])

	// the old token is now dead.
	again := doRequest(h, "PUT", "/token", `{"token":"`+oldID+`"}`, "application/json")
	var envAgain rotateEnvelope
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &envAgain))
	assert.Equal(t, "InvalidToken", envAgain.Err)
}

func TestRotateWithoutMetaKeepsOldMeta(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	create := doRequest(h, "POST", "/token", `{"meta":{"user":"alice"}}`, "application/json")
	oldID := create.Body.String()

	rotate := doRequest(h, "PUT", "/token", `{"token":"`+oldID+`"}`, "application/json")
	var env rotateEnvelope
	require.NoError(t, json.Unmarshal(rotate.Body.Bytes(), &env))
	require.NotNil(t, env.Ok)
	assert.Equal(t, "alice", env.Ok.Meta["user"])
}

func TestRotateUnknownTokenReturnsInvalidTokenEnvelope(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "PUT", "/token", `{"token":"does-not-exist"}`, "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	var env rotateEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "InvalidToken", env.Err)
	assert.Nil(t, env.Ok)
}

func TestRotateRejectsWrongContentTypeWithoutTouchingStore(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	create := doRequest(h, "POST", "/token", `{"meta":{}}`, "application/json")
	oldID := create.Body.String()

	w := doRequest(h, "PUT", "/token", `{"token":"`+oldID+`"}`, "application/xml")

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, 1, p.Store.Len())
}

func TestRemoveIsIdempotent(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	create := doRequest(h, "POST", "/token", `{"meta":{}}`, "application/json")
	id := create.Body.String()

	first := doRequest(h, "DELETE", "/token", `{"token":"`+id+`"}`, "application/json")
	second := doRequest(h, "DELETE", "/token", `{"token":"`+id+`"}`, "application/json")

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, 0, p.Store.Len())
}

func TestPing(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "GET", "/ping", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDumpDisabledByDefaultIs404(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "HEAD", "/dump", "", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDumpEnabledReturns202(t *testing.T) {
	p, _ := testProperties(t, true, false)
	h := Handler(p)

	doRequest(h, "POST", "/token", `{"meta":{}}`, "application/json")
	w := doRequest(h, "HEAD", "/dump", "", "")

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestShutdownDisabledByDefaultIs404(t *testing.T) {
	p, called := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "GET", "/shutdown", "", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, *called)
}

func TestShutdownEnabledInvokesCallback(t *testing.T) {
	p, called := testProperties(t, false, true)
	h := Handler(p)

	w := doRequest(h, "GET", "/shutdown", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, *called)
}

func TestUnknownPathIs404(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "GET", "/nope", "", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWrongMethodOnKnownPathIs405(t *testing.T) {
	p, _ := testProperties(t, false, false)
	h := Handler(p)

	w := doRequest(h, "GET", "/token", "", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
