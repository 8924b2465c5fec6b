package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Use(Middleware(DefaultConfig()))
	e.GET("/form", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(ContextKey).(string))
	})
	e.POST("/form", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	return e
}

func tokenFrom(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	tok := rec.Body.String()
	require.NotEmpty(t, tok)
	assert.Equal(t, tok, rec.Header().Get("X-CSRF-Token"))
	return tok
}

func TestCSRF_PostWithHeader(t *testing.T) {
	e := newEcho()
	tok := tokenFrom(t, e)

	req := httptest.NewRequest(http.MethodPost, "/form", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("X-CSRF-Token", tok)
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: tok})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRF_PostWithFormField(t *testing.T) {
	e := newEcho()
	tok := tokenFrom(t, e)

	form := url.Values{"csrf_token": {tok}}
	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("Origin", "http://example.com")
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: tok})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRF_Rejects(t *testing.T) {
	e := newEcho()
	tok := tokenFrom(t, e)

	cases := map[string]func(r *http.Request){
		"missing token": func(r *http.Request) {
			r.Header.Set("Origin", "http://example.com")
			r.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: tok})
		},
		"wrong token": func(r *http.Request) {
			r.Header.Set("Origin", "http://example.com")
			r.Header.Set("X-CSRF-Token", tok+"x")
			r.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: tok})
		},
		"foreign origin": func(r *http.Request) {
			r.Header.Set("Origin", "http://evil.test")
			r.Header.Set("X-CSRF-Token", tok)
			r.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: tok})
		},
	}
	for name, prep := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/form", nil)
			prep(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestCSRF_HeaderTokenWithoutOrigin(t *testing.T) {
	e := newEcho()
	tok := tokenFrom(t, e)

	req := httptest.NewRequest(http.MethodPost, "/form", nil)
	req.Header.Set("X-CSRF-Token", tok)
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: tok})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRF_FormTokenRequiresOrigin(t *testing.T) {
	e := newEcho()
	tok := tokenFrom(t, e)

	form := url.Values{"csrf_token": {tok}}
	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: tok})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRF_SkipPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipPaths = []string{"/hook"}
	e := echo.New()
	e.Use(Middleware(cfg))
	e.POST("/hook", func(c echo.Context) error { return c.NoContent(http.StatusAccepted) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
