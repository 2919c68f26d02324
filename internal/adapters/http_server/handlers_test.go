package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	server "hbnb_api/internal/adapters/http_server"
	"hbnb_api/internal/app"
	"hbnb_api/internal/domain"
	"hbnb_api/internal/storage/file"
)

// countingProvider tracks scopes so tests can check none leak.
type countingProvider struct {
	domain.Provider
	mu             sync.Mutex
	opened, closed int
}

func (p *countingProvider) Open(ctx context.Context) (domain.Engine, error) {
	e, err := p.Provider.Open(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.opened++
	p.mu.Unlock()
	return &countingEngine{Engine: e, p: p}, nil
}

type countingEngine struct {
	domain.Engine
	p *countingProvider
}

func (e *countingEngine) Close() error {
	e.p.mu.Lock()
	e.p.closed++
	e.p.mu.Unlock()
	return e.Engine.Close()
}

func newAPI(t *testing.T, opts server.Options) (http.Handler, *countingProvider) {
	t.Helper()
	fs, err := file.Open(context.Background(), filepath.Join(t.TempDir(), "file.json"))
	require.NoError(t, err)
	p := &countingProvider{Provider: fs}

	cmd := app.NewCommandService(nil)
	cmd.HashCost = bcrypt.MinCost
	srv := server.New(opts)
	srv.MountHandlers(&server.Handlers{Q: app.NewQueryService(nil, 60), C: cmd}, p)
	return srv.Mux(), p
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestStatusAndUnknownRoute(t *testing.T) {
	h, _ := newAPI(t, server.Options{})

	rr := do(t, h, "GET", "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", decode[map[string]string](t, rr)["status"])

	rr = do(t, h, "GET", "/api/v1/status/", "")
	assert.Equal(t, http.StatusOK, rr.Code, "trailing slash is tolerated")

	rr = do(t, h, "GET", "/api/v1/nop", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rr.Body.String())
}

func TestStateLifecycle(t *testing.T) {
	h, p := newAPI(t, server.Options{})

	rr := do(t, h, "POST", "/api/v1/states", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Not a JSON"}`, rr.Body.String())

	rr = do(t, h, "POST", "/api/v1/states", "{broken")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Not a JSON"}`, rr.Body.String())

	rr = do(t, h, "POST", "/api/v1/states", `{"nom":"x"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Missing name"}`, rr.Body.String())

	rr = do(t, h, "POST", "/api/v1/states/", `{"name":"California"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[map[string]any](t, rr)
	id := created["id"].(string)
	assert.Equal(t, "State", created["__class__"])

	rr = do(t, h, "GET", "/api/v1/states/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rr = do(t, h, "GET", "/api/v1/states/"+id, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Empty(t, rr.Body.Bytes())

	rr = do(t, h, "PUT", "/api/v1/states/"+id, `{"name":"Cali","id":"hijack"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[map[string]any](t, rr)
	assert.Equal(t, "Cali", updated["name"])
	assert.Equal(t, id, updated["id"])

	rr = do(t, h, "GET", "/api/v1/states", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = do(t, h, "DELETE", "/api/v1/states/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{}`, rr.Body.String())

	rr = do(t, h, "GET", "/api/v1/states/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, h, "PUT", "/api/v1/states/"+id, `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, p.opened, p.closed, "every request scope is closed")
	assert.NotZero(t, p.opened)
}

func TestNestedResourcesAndStats(t *testing.T) {
	h, _ := newAPI(t, server.Options{})

	post := func(path, body string) map[string]any {
		t.Helper()
		rr := do(t, h, "POST", path, body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		return decode[map[string]any](t, rr)
	}

	st := post("/api/v1/states", `{"name":"Oregon"}`)
	city := post("/api/v1/states/"+st["id"].(string)+"/cities", `{"name":"Portland"}`)
	assert.Equal(t, st["id"], city["state_id"])

	rr := do(t, h, "POST", "/api/v1/states/missing/cities", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	user := post("/api/v1/users", `{"email":"a@b.c","password":"pw","first_name":"Ann"}`)
	assert.NotContains(t, user, "password")

	cityPlaces := "/api/v1/cities/" + city["id"].(string) + "/places"
	rr = do(t, h, "POST", cityPlaces, `{"name":"Loft"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Missing user_id"}`, rr.Body.String())
	rr = do(t, h, "POST", cityPlaces, `{"name":"Loft","user_id":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	place := post(cityPlaces, `{"name":"Loft","user_id":"`+user["id"].(string)+`","price_by_night":90}`)
	assert.EqualValues(t, 90, place["price_by_night"])

	reviews := "/api/v1/places/" + place["id"].(string) + "/reviews"
	rr = do(t, h, "POST", reviews, `{"user_id":"`+user["id"].(string)+`"}`)
	assert.JSONEq(t, `{"error":"Missing text"}`, rr.Body.String())
	post(reviews, `{"text":"cosy","user_id":"`+user["id"].(string)+`"}`)

	rr = do(t, h, "GET", reviews, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = do(t, h, "GET", "/api/v1/cities/"+city["id"].(string)+"/places", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = do(t, h, "GET", "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]int{
		"amenity": 0, "city": 1, "place": 1, "review": 1, "state": 1, "user": 1,
	}, decode[map[string]int](t, rr))

	rr = do(t, h, "DELETE", "/api/v1/states/"+st["id"].(string), "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, "GET", "/api/v1/stats", "")
	assert.Equal(t, map[string]int{
		"amenity": 0, "city": 0, "place": 0, "review": 0, "state": 0, "user": 1,
	}, decode[map[string]int](t, rr))
}

func TestPlaceAmenityLinks(t *testing.T) {
	h, _ := newAPI(t, server.Options{})

	rr := do(t, h, "POST", "/api/v1/amenities", `{"name":"Wifi"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	amenity := decode[map[string]any](t, rr)
	rr = do(t, h, "POST", "/api/v1/users", `{"email":"e","password":"p"}`)
	user := decode[map[string]any](t, rr)
	rr = do(t, h, "POST", "/api/v1/states", `{"name":"S"}`)
	st := decode[map[string]any](t, rr)
	rr = do(t, h, "POST", "/api/v1/states/"+st["id"].(string)+"/cities", `{"name":"C"}`)
	city := decode[map[string]any](t, rr)
	rr = do(t, h, "POST", "/api/v1/cities/"+city["id"].(string)+"/places", `{"name":"P","user_id":"`+user["id"].(string)+`"}`)
	place := decode[map[string]any](t, rr)

	link := "/api/v1/places/" + place["id"].(string) + "/amenities/" + amenity["id"].(string)
	rr = do(t, h, "POST", link, "")
	assert.Equal(t, http.StatusCreated, rr.Code)
	rr = do(t, h, "POST", link, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, "GET", "/api/v1/places/"+place["id"].(string)+"/amenities", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]map[string]any](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, "Wifi", list[0]["name"])

	rr = do(t, h, "DELETE", link, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, "DELETE", link, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRateLimit(t *testing.T) {
	h, _ := newAPI(t, server.Options{RateLimitRPS: 1})

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/api/v1/status", "").Code)
	rr := do(t, h, "GET", "/api/v1/status", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestTimeoutAnswersJSON(t *testing.T) {
	slow := server.Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	rec := httptest.NewRecorder()
	slow.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Service Unavailable", body["error"])

	fast := server.Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))
	rec = httptest.NewRecorder()
	fast.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}
