//go:build integration || !unit

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "hbnb_api/internal/adapters/http_server"
	"hbnb_api/internal/app"
	"hbnb_api/internal/storage"
	"hbnb_api/internal/storage/relational"
)

// ---------- helpers ----------

func startMySQL(t *testing.T) *relational.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=hbnb_test_db",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := relational.MySQLDSN("root", "root", "127.0.0.1:"+resource.GetPort("3306/tcp"), "hbnb_test_db")
	var db *relational.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = relational.Open(context.Background(), relational.Config{Dialect: relational.DialectMySQL, DSN: dsn})
		return e
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr.Code, out
}

// ---------- the test ----------

func TestHTTP_EndToEnd_MySQL(t *testing.T) {
	db := startMySQL(t)

	srv := server.New(server.Options{})
	srv.MountHandlers(&server.Handlers{
		Q: app.NewQueryService(nil, 60),
		C: app.NewCommandService(nil),
	}, storage.Instrument(db, "db"))
	h := srv.Mux()

	code, st := call(t, h, "POST", "/api/v1/states", `{"name":"Arizona"}`)
	if code != http.StatusCreated {
		t.Fatalf("create state: %d %v", code, st)
	}
	code, city := call(t, h, "POST", "/api/v1/states/"+st["id"].(string)+"/cities", `{"name":"Tempe"}`)
	if code != http.StatusCreated {
		t.Fatalf("create city: %d %v", code, city)
	}
	code, user := call(t, h, "POST", "/api/v1/users", `{"email":"e@x","password":"p"}`)
	if code != http.StatusCreated {
		t.Fatalf("create user: %d %v", code, user)
	}
	code, am := call(t, h, "POST", "/api/v1/amenities", `{"name":"Pool"}`)
	if code != http.StatusCreated {
		t.Fatalf("create amenity: %d %v", code, am)
	}
	code, place := call(t, h, "POST", "/api/v1/cities/"+city["id"].(string)+"/places",
		`{"name":"Casita","user_id":"`+user["id"].(string)+`"}`)
	if code != http.StatusCreated {
		t.Fatalf("create place: %d %v", code, place)
	}
	link := "/api/v1/places/" + place["id"].(string) + "/amenities/" + am["id"].(string)
	if code, _ := call(t, h, "POST", link, ""); code != http.StatusCreated {
		t.Fatalf("link amenity: %d", code)
	}

	code, got := call(t, h, "GET", "/api/v1/places/"+place["id"].(string), "")
	if code != http.StatusOK {
		t.Fatalf("get place: %d", code)
	}
	ids, _ := got["amenity_ids"].([]any)
	if len(ids) != 1 || ids[0] != am["id"] {
		t.Fatalf("amenity_ids = %v", got["amenity_ids"])
	}

	if code, _ := call(t, h, "DELETE", "/api/v1/amenities/"+am["id"].(string), ""); code != http.StatusOK {
		t.Fatalf("delete amenity: %d", code)
	}
	_, got = call(t, h, "GET", "/api/v1/places/"+place["id"].(string), "")
	if ids, _ := got["amenity_ids"].([]any); len(ids) != 0 {
		t.Fatalf("amenity still linked: %v", ids)
	}

	if code, _ := call(t, h, "DELETE", "/api/v1/states/"+st["id"].(string), ""); code != http.StatusOK {
		t.Fatalf("delete state: %d", code)
	}
	code, stats := call(t, h, "GET", "/api/v1/stats", "")
	if code != http.StatusOK || stats["place"] != float64(0) || stats["user"] != float64(1) {
		t.Fatalf("stats after cascade: %d %v", code, stats)
	}
}
