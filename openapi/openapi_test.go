package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type loginRequest struct {
	Identifier string `json:"identifier" doc:"Account identifier"`
	Password   string `json:"password"`
}

type session struct {
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	UserAgent *string   `json:"user_agent,omitempty"`
	Hidden    string    `json:"-"`
}

type sessionList struct {
	Sessions []session `json:"sessions"`
}

func buildDocument() *OpenAPI {
	doc := New("tokenchain", "1.0.0").
		Description("Refresh token lifecycle").
		Tag("auth", "Session endpoints").
		BearerAuth("bearerAuth", "Access token").
		CookieAuth("refreshCookie", "__Host-rt", "Refresh token cookie")

	doc.Document("post", "/auth/login").
		Summary("Log in").
		Tags("auth").
		Body(loginRequest{}, "Credentials").
		Response(http.StatusOK, sessionList{}, "Sessions").
		ResponseHeaders(http.StatusOK, map[string]string{"Set-Cookie": "Refresh token cookie"}).
		Response(http.StatusUnauthorized, nil, "Not authenticated").
		NoSecurity().
		Build()

	doc.Document(http.MethodPost, "/auth/refresh").
		CookieParam("__Host-rt", "Refresh token", true).
		HeaderParam("X-CSRF-Token", "CSRF token", false).
		Security("refreshCookie").
		Response(http.StatusOK, nil, "Rotated").
		Build()

	return doc
}

func TestDocument(t *testing.T) {
	doc := buildDocument()
	spec := doc.Spec()

	t.Run("operations are registered", func(t *testing.T) {
		login := spec.Paths.Find("/auth/login")
		require.NotNil(t, login)
		require.NotNil(t, login.Post)
		assert.Equal(t, "Log in", login.Post.Summary)
		assert.Equal(t, []string{"auth"}, login.Post.Tags)
		require.NotNil(t, login.Post.Security)
		assert.Empty(t, *login.Post.Security)

		refresh := spec.Paths.Find("/auth/refresh")
		require.NotNil(t, refresh.Post)
		assert.Len(t, refresh.Post.Parameters, 2)
		assert.Len(t, *refresh.Post.Security, 1)
	})

	t.Run("struct schemas become components", func(t *testing.T) {
		request := spec.Components.Schemas["loginRequest"]
		require.NotNil(t, request)
		assert.ElementsMatch(t, []string{"identifier", "password"}, request.Value.Required)
		assert.Equal(t, "Account identifier", request.Value.Properties["identifier"].Value.Description)

		sess := spec.Components.Schemas["session"]
		require.NotNil(t, sess)
		assert.NotContains(t, sess.Value.Properties, "Hidden")
		assert.NotContains(t, sess.Value.Required, "user_agent")
		assert.Equal(t, "date-time", sess.Value.Properties["issued_at"].Value.Format)
		assert.True(t, sess.Value.Properties["user_agent"].Value.Nullable)

		list := spec.Components.Schemas["sessionList"]
		require.NotNil(t, list)
		assert.Equal(t, "#/components/schemas/session", list.Value.Properties["sessions"].Value.Items.Ref)
	})

	t.Run("response headers", func(t *testing.T) {
		resp := spec.Paths.Find("/auth/login").Post.Responses.Value("200")
		require.NotNil(t, resp)
		assert.Contains(t, resp.Value.Headers, "Set-Cookie")
	})

	t.Run("document validates", func(t *testing.T) {
		assert.NoError(t, spec.Validate(t.Context()))
	})
}

func TestHandlers(t *testing.T) {
	doc := buildDocument()
	e := echo.New()

	t.Run("json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/openapi.json", nil), rec)

		require.NoError(t, doc.JSONHandler()(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var parsed map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
		assert.Equal(t, "3.0.3", parsed["openapi"])
	})

	t.Run("yaml", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil), rec)

		require.NoError(t, doc.YAMLHandler()(c))
		assert.Equal(t, "application/yaml", rec.Header().Get(echo.HeaderContentType))

		var parsed map[string]any
		require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &parsed))
		assert.Contains(t, parsed, "paths")
	})
}
