package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/casedesk/internal/feed"
	"github.com/pders01/casedesk/internal/storage"
	"github.com/pders01/casedesk/internal/validation"
)

type recorded struct {
	Method    string
	Path      string
	Query     string
	Auth      string
	UserAgent string
	RequestID string
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, recorded{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Auth:      r.Header.Get("Authorization"),
			UserAgent: r.Header.Get("User-Agent"),
			RequestID: r.Header.Get(RequestIDHeader),
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sampleApp(id uint64, first, last string) storage.Application {
	return storage.Application{
		ID:            id,
		FirstName:     first,
		LastName:      last,
		Gender:        "Female",
		CivilStatus:   "Single",
		BirthDate:     "1990-01-01",
		ContactNumber: "09171234567",
		Gmail:         "sample@gmail.com",
		HouseNo:       "1",
		Street:        "Rizal",
		Barangay:      "Poblacion",
		City:          "Quezon City",
		Crisis:        "Flood",
		Situation:     "Displaced",
	}
}

func TestFetchPage(t *testing.T) {
	srv, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"applications": map[string]any{
				"current_page": 2,
				"data":         []storage.Application{sampleApp(7, "Ana", "Garcia")},
				"last_page":    3,
				"per_page":     15,
				"total":        31,
			},
		})
	})

	c := NewClient(srv.URL+"/api/", "tok", WithUserAgent("casedesk-test/1.0"))
	page, err := c.FetchPage(context.Background(), "dela cruz", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 3, page.LastPage)
	require.Len(t, page.Items, 1)
	assert.Equal(t, uint64(7), page.Items[0].ID)
	assert.Equal(t, "Garcia, Ana", page.Items[0].FullName())

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/application/loadApplications", got.Path)
	assert.Equal(t, "page=2&search=dela+cruz", got.Query)
	assert.Equal(t, "Bearer tok", got.Auth)
	assert.Equal(t, "casedesk-test/1.0", got.UserAgent)
	_, err = uuid.Parse(got.RequestID)
	assert.NoError(t, err, "request id should be a uuid")
}

// laravelPage is a loadApplications body as the case API sends it: the
// eager-loaded lookup rows replace the joined name columns and dates carry
// a time of day.
const laravelPage = `{"applications":{
	"current_page": 1,
	"data": [{
		"application_id": 5,
		"first_name": "Jose",
		"middle_name": null,
		"last_name": "Dela Cruz",
		"suffix_name": null,
		"gender_id": 1,
		"civil_status": "Married",
		"birth_date": "1978-11-30T00:00:00.000000Z",
		"age": 46,
		"contact_number": "09171234567",
		"gmail": "jose@gmail.com",
		"house_no": "3",
		"street": "Rizal",
		"subdivision": null,
		"barangay": "Poblacion",
		"city": "Quezon City",
		"crisis_id": 2,
		"situation_id": 1,
		"incident_date": "2025-07-20",
		"is_deleted": false,
		"created_at": "2025-07-21T03:04:05.000000Z",
		"updated_at": "2025-07-21T03:04:05.000000Z",
		"gender": {"gender_id": 1, "gender": "Male", "is_deleted": 0},
		"crisis": {"crisis_id": 2, "crisis": "Flood", "is_deleted": 0},
		"situation": {"situation_id": 1, "situation": "Displaced", "is_deleted": 0},
		"attached_file_url": "http://127.0.0.1:8000/storage/img/application/files/ab12.pdf"
	}],
	"first_page_url": "http://127.0.0.1:8000/api/application/loadApplications?page=1",
	"from": 1,
	"last_page": 1,
	"per_page": 15,
	"to": 1,
	"total": 1
}}`

func TestFetchPage_LaravelRelations(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(laravelPage))
	})

	page, err := NewClient(srv.URL, "").FetchPage(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	app := page.Items[0]
	assert.Equal(t, "Dela Cruz, Jose", app.FullName())
	assert.Equal(t, "Male", app.Gender)
	assert.Equal(t, "Flood", app.Crisis)
	assert.Equal(t, "Displaced", app.Situation)
	assert.Equal(t, "1978-11-30", app.BirthDate)
	assert.Equal(t, "http://127.0.0.1:8000/storage/img/application/files/ab12.pdf", app.AttachedFileURL)
}

func TestFetchPage_EmptySearchOmitsParameter(t *testing.T) {
	srv, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"applications": map[string]any{"current_page": 1, "data": []any{}, "last_page": 1, "per_page": 15, "total": 0},
		})
	})

	page, err := NewClient(srv.URL, "").FetchPage(context.Background(), "", 1)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, "page=1", (*reqs)[0].Query)
	assert.Empty(t, (*reqs)[0].Auth)
}

func TestFetchPage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing envelope", `{"data":[]}`},
		{"null data", `{"applications":{"current_page":1,"data":null,"last_page":1}}`},
		{"missing data", `{"applications":{"current_page":1,"last_page":1}}`},
		{"zero current page", `{"applications":{"current_page":0,"data":[],"last_page":1}}`},
		{"zero last page", `{"applications":{"current_page":1,"data":[],"last_page":0}}`},
		{"current beyond last", `{"applications":{"current_page":3,"data":[],"last_page":2}}`},
		{"wrong page", `{"applications":{"current_page":1,"data":[],"last_page":2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			page := 1
			if tt.name == "wrong page" {
				page = 2
			}
			_, err := NewClient(srv.URL, "").FetchPage(context.Background(), "", page)
			assert.ErrorIs(t, err, feed.ErrMalformedPage)
		})
	}
}

func TestFetchPage_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := NewClient(srv.URL, "").FetchPage(context.Background(), "", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"Unauthenticated."}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Contains(t, err.Error(), "Unauthenticated.")
		}},
		{"not found", http.StatusNotFound, ``, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, storage.ErrNotFound)
		}},
		{"server error", http.StatusInternalServerError, `{"message":"Server Error"}`, func(t *testing.T, err error) {
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, 500, se.Code)
			assert.Equal(t, "Server Error", se.Message)
		}},
		{"plain text body", http.StatusBadGateway, "upstream down", func(t *testing.T, err error) {
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "upstream down", se.Message)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := NewClient(srv.URL, "").GetApplication(context.Background(), 1)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLogin(t *testing.T) {
	srv, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var body LoginRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Gmail != "admin@gmail.com" || body.Password != "secret123" {
				writeJSON(w, http.StatusUnauthorized, MessageResponse{Message: "The provided credentials are incorrect."})
				return
			}
			writeJSON(w, http.StatusOK, LoginResponse{User: User{Gmail: body.Gmail}, Token: "issued"})
		default:
			writeJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
		}
	})

	c := NewClient(srv.URL, "")

	_, err := c.Login(context.Background(), "admin@gmail.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "The provided credentials are incorrect.")
	assert.Empty(t, c.Token())

	resp, err := c.Login(context.Background(), "admin@gmail.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "admin@gmail.com", resp.User.Gmail)
	assert.Equal(t, "issued", c.Token())

	require.NoError(t, c.DestroyApplication(context.Background(), 4))
	last := (*reqs)[len(*reqs)-1]
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Equal(t, "/application/destroyApplication/4", last.Path)
	assert.Equal(t, "Bearer issued", last.Auth)
}

func TestStoreAndUpdateApplication(t *testing.T) {
	srv, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var app storage.Application
		if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: err.Error()})
			return
		}
		if app.FirstName == "" {
			writeJSON(w, http.StatusUnprocessableEntity, MessageResponse{Message: "invalid record: first_name: required"})
			return
		}
		if app.ID == 0 {
			app.ID = 21
		}
		writeJSON(w, http.StatusOK, ApplicationResponse{Message: "ok", Application: &app})
	})
	c := NewClient(srv.URL, "tok")
	ctx := context.Background()

	in := sampleApp(0, "Ana", "Garcia")
	created, err := c.StoreApplication(ctx, &in)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), created.ID)
	assert.Equal(t, http.MethodPost, (*reqs)[0].Method)
	assert.Equal(t, "/application/storeApplication", (*reqs)[0].Path)

	created.City = "Pasig"
	updated, err := c.UpdateApplication(ctx, created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, "Pasig", updated.City)
	assert.Equal(t, http.MethodPost, (*reqs)[1].Method)
	assert.Equal(t, "/application/updateApplication/21", (*reqs)[1].Path)
	assert.Equal(t, "Bearer tok", (*reqs)[1].Auth)

	bad := sampleApp(0, "", "Garcia")
	_, err = c.StoreApplication(ctx, &bad)
	require.ErrorIs(t, err, validation.ErrInvalidRecord)
	assert.Equal(t, "store application: invalid record: first_name: required", err.Error())
}

func TestGetApplication(t *testing.T) {
	srv, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ApplicationResponse{Application: ptr(sampleApp(12, "Jose", "Dela Cruz"))})
	})

	app, err := NewClient(srv.URL, "").GetApplication(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "Dela Cruz, Jose", app.FullName())
	assert.Equal(t, "/application/getApplication/12", (*reqs)[0].Path)
}

func TestRequestIDsAreUnique(t *testing.T) {
	srv, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
	})

	c := NewClient(srv.URL, "")
	require.NoError(t, c.DestroyApplication(context.Background(), 1))
	require.NoError(t, c.DestroyApplication(context.Background(), 2))
	assert.NotEqual(t, (*reqs)[0].RequestID, (*reqs)[1].RequestID)
}

func TestTimeoutIsTransientFailure(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	c := NewClient(srv.URL, "", WithTimeout(50*time.Millisecond))
	_, err := c.FetchPage(context.Background(), "", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func ptr[T any](v T) *T { return &v }
