package httpserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_auction/internal/events"
	authmw "github.com/Skotchmaster/online_auction/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/online_auction/internal/middleware/logging"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/repo"
	"github.com/Skotchmaster/online_auction/internal/service"
	"github.com/Skotchmaster/online_auction/internal/storage"
	"github.com/Skotchmaster/online_auction/internal/testutil"
	"github.com/Skotchmaster/online_auction/internal/tokens"
)

type testEnv struct {
	t  *testing.T
	e  *echo.Echo
	db *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	r := repo.New(db)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	pub := events.NopPublisher{}
	authSvc := &service.AuthService{Repo: r, JWTSecret: []byte("a"), RefreshSecret: []byte("b"), Events: pub}
	users := &service.UserService{Repo: r, Events: pub}

	e := echo.New()
	e.Use(loggingmw.RequestLogger(slog.New(slog.DiscardHandler)))
	Register(e, &Deps{
		Auth: &AuthHTTP{Svc: authSvc},
		Auctions: &AuctionHTTP{
			Auctions: &service.AuctionService{Repo: r, Images: store, Events: pub},
			Bidding:  &service.BiddingService{Repo: r, Events: pub},
			Users:    users,
		},
		Users:  &UserHTTP{Svc: users},
		AuthMW: authmw.NewAutoRefreshMiddleware(authSvc.JWTSecret, authSvc, false),
		Ready:  r.Ping,
	})
	return &testEnv{t: t, e: e, db: db}
}

func (env *testEnv) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) get(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return env.do(httptest.NewRequest(http.MethodGet, path, nil), cookies)
}

func (env *testEnv) postForm(path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return env.do(req, cookies)
}

func (env *testEnv) postMultipart(path string, fields map[string]string, filename, content string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(env.t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("image", filename)
		require.NoError(env.t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(env.t, err)
	}
	require.NoError(env.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return env.do(req, cookies)
}

func (env *testEnv) signup(username, role string) []*http.Cookie {
	env.t.Helper()
	rec := env.postForm("/register", url.Values{
		"username":         {username},
		"password":         {"secret1!"},
		"confirm_password": {"secret1!"},
		"role":             {role},
	}, nil)
	require.Equal(env.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.postForm("/login", url.Values{"username": {username}, "password": {"secret1!"}}, nil)
	require.Equal(env.t, http.StatusOK, rec.Code, rec.Body.String())

	var cookies []*http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == tokens.AccessCookie || ck.Name == tokens.RefreshCookie {
			cookies = append(cookies, ck)
		}
	}
	require.Len(env.t, cookies, 2)
	return cookies
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (env *testEnv) createAuction(admin []*http.Cookie, price string, end time.Time) uint {
	env.t.Helper()
	rec := env.postMultipart("/create_auction", map[string]string{
		"description":    "walnut desk",
		"end_date":       end.UTC().Format(time.RFC3339),
		"starting_price": price,
	}, "desk.png", "png-bytes", admin)
	require.Equal(env.t, http.StatusCreated, rec.Code, rec.Body.String())

	var a models.Auction
	require.NoError(env.t, json.Unmarshal(rec.Body.Bytes(), &a))
	return a.ID
}

func TestHealthAndIndex(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.get("/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, env.get("/health/ready", nil).Code)
	assert.Equal(t, http.StatusOK, env.get("/", nil).Code)
}

func TestCapabilities(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.signup("bob", models.RoleBuyer)
	admin := env.signup("root", models.RoleAdmin)

	for _, path := range []string{"/buyer", "/admin", "/users", "/view_auction/1", "/search?q=x"} {
		rec := env.get(path, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation), path)
	}

	for _, path := range []string{"/admin", "/users", "/create_auction", "/edit_auction/1"} {
		assert.Equal(t, http.StatusForbidden, env.get(path, buyer).Code, path)
	}
	rec := env.postForm("/delete_auction/1", nil, buyer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, http.StatusOK, env.get("/buyer", buyer).Code)
	assert.Equal(t, http.StatusOK, env.get("/admin", admin).Code)
	assert.Equal(t, http.StatusOK, env.get("/buyer", admin).Code)

	rec = env.get("/users", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	env.signup("ann", models.RoleBuyer)

	rec := env.postForm("/register", url.Values{
		"username": {"ann"}, "password": {"secret1!"}, "confirm_password": {"secret1!"}, "role": {models.RoleBuyer},
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.postForm("/register", url.Values{
		"username": {"zed"}, "password": {"short"}, "confirm_password": {"short"}, "role": {models.RoleBuyer},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postForm("/login", url.Values{"username": {"ann"}, "password": {"nope12!!"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRedirectByRole(t *testing.T) {
	env := newTestEnv(t)
	env.signup("root", models.RoleAdmin)

	rec := env.postForm("/login", url.Values{"username": {"root"}, "password": {"secret1!"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/admin", decode(t, rec)["redirect"])
}

func TestBiddingFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signup("root", models.RoleAdmin)
	buyer := env.signup("bob", models.RoleBuyer)
	id := env.createAuction(admin, "100", time.Now().Add(time.Hour))
	path := "/view_auction/" + strconvU(id)

	rec := env.postForm("/add_money", url.Values{"amount": {"150"}}, buyer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "150", body["new_balance"])

	rec = env.postForm("/add_money", url.Values{"amount": {"-3"}}, buyer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postForm(path, url.Values{"bid_amount": {"100"}}, buyer)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "bid rejected")

	rec = env.postForm(path, url.Values{"bid_amount": {"101"}}, buyer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, "49", body["balance"])

	rec = env.postForm(path, url.Values{"bid_amount": {"60"}}, buyer)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.get(path, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	bids := body["bids"].([]any)
	require.Len(t, bids, 1)
	assert.Equal(t, "bob", bids[0].(map[string]any)["username"])

	assert.Equal(t, http.StatusBadRequest, env.postForm("/view_auction/abc", url.Values{"bid_amount": {"1"}}, buyer).Code)
	assert.Equal(t, http.StatusNotFound, env.postForm("/view_auction/999", url.Values{"bid_amount": {"1"}}, buyer).Code)
}

func TestAuctionAdminFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signup("root", models.RoleAdmin)

	rec := env.postMultipart("/create_auction", map[string]string{
		"description": "x", "end_date": "2030-01-01T10:00", "starting_price": "5",
	}, "evil.sh", "#!", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postMultipart("/create_auction", map[string]string{
		"description": "x", "end_date": "2030-01-01T10:00", "starting_price": "-5",
	}, "ok.png", "png", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := env.createAuction(admin, "5", time.Now().Add(time.Hour))
	path := strconvU(id)

	rec = env.postMultipart("/edit_auction/"+path, map[string]string{
		"description": "teak desk", "end_date": "2031-01-01", "starting_price": "9",
	}, "", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var a models.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "teak desk", a.Description)
	assert.True(t, strings.HasSuffix(a.Image, "_desk.png"))

	rec = env.get("/search?q=teak", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"].([]any), 1)

	assert.Equal(t, http.StatusNoContent, env.postForm("/delete_auction/"+path, nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, env.get("/edit_auction/"+path, admin).Code)
	assert.Equal(t, http.StatusNotFound, env.postForm("/delete_auction/"+path, nil, admin).Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.signup("bob", models.RoleBuyer)

	rec := env.get("/logout", buyer)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	var refresh *http.Cookie
	for _, ck := range buyer {
		if ck.Name == tokens.RefreshCookie {
			refresh = ck
		}
	}
	require.NotNil(t, refresh)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/refresh", nil), []*http.Cookie{refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
