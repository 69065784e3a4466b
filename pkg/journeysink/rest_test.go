package journeysink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
)

func newTestJourney(t *testing.T) *journey.Journey {
	t.Helper()

	j, err := journey.New(journey.NewJourneyOptions{
		UserID: "user-1",
		Destination: journey.Place{
			Address:    "350 5th Ave, New York",
			Name:       "Empire State Building",
			Coordinate: journey.Coordinate{Latitude: 40.7484, Longitude: -73.9857},
		},
		Mode:         journey.TravelModeDriving,
		RouteSummary: &journey.RouteSummary{DistanceMeters: 1200, DurationSeconds: 420, StepCount: 5},
		StartedAt:    time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	return j
}

func newTestSink(t *testing.T, serverURL string, config RESTConfig) *RESTSink {
	t.Helper()

	config.BaseURL = serverURL + "/rest/v1"
	config.APIKey = "test-key"
	config.BaseDelay = time.Millisecond

	sink, err := NewRESTSink(config, nil)
	require.NoError(t, err)

	return sink
}

func breadcrumbAt(lat float64, seconds int) journey.Breadcrumb {
	return journey.Breadcrumb{
		Coordinate: journey.Coordinate{Latitude: lat, Longitude: -73.98},
		Timestamp:  time.Date(2026, 5, 4, 8, 30, seconds, 0, time.UTC),
	}
}

// fakeStore is a tiny PostgREST stand in holding one journey row
type fakeStore struct {
	mu sync.Mutex

	breadcrumbs []journey.BreadcrumbRecord
	checkpoints []journey.CheckpointRecord
	version     int64

	procedureInstalled bool
	conflictsToInject  int

	procedureCalls int
	gets           int
	patches        int
}

func (f *fakeStore) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		assert.Equal(t, "test-key", r.Header.Get("apikey"))

		switch {
		case strings.HasPrefix(r.URL.Path, "/rest/v1/rpc/"):
			f.procedureCalls++
			if !f.procedureInstalled {
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `{"code":"PGRST202","message":"Could not find the function"}`)
				return
			}

			var args struct {
				NewBreadcrumbs []journey.BreadcrumbRecord `json:"new_breadcrumbs"`
				NewCheckpoint  *journey.CheckpointRecord  `json:"new_checkpoint"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&args))
			f.breadcrumbs = append(f.breadcrumbs, args.NewBreadcrumbs...)
			if args.NewCheckpoint != nil {
				f.checkpoints = append(f.checkpoints, *args.NewCheckpoint)
			}
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet:
			f.gets++
			row := map[string]interface{}{
				"breadcrumbs": f.breadcrumbs,
				"checkpoints": f.checkpoints,
				"version":     f.version,
			}
			json.NewEncoder(w).Encode([]interface{}{row})
		case r.Method == http.MethodPatch:
			f.patches++

			if expected := r.URL.Query().Get("version"); expected != "" {
				if f.conflictsToInject > 0 {
					f.conflictsToInject--
					f.version++
					io.WriteString(w, "[]")
					return
				}
				assert.Equal(t, "eq."+jsonNumber(f.version), expected)
			}

			var body struct {
				Breadcrumbs []journey.BreadcrumbRecord `json:"breadcrumbs"`
				Checkpoints []journey.CheckpointRecord `json:"checkpoints"`
				Version     *int64                     `json:"version"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body.Breadcrumbs != nil {
				f.breadcrumbs = body.Breadcrumbs
			}
			if body.Checkpoints != nil {
				f.checkpoints = body.Checkpoints
			}
			if body.Version != nil {
				f.version = *body.Version
				io.WriteString(w, `[{"id":"x"}]`)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func latitudes(records []journey.BreadcrumbRecord) []float64 {
	var lats []float64
	for _, r := range records {
		lats = append(lats, r.Lat)
	}
	return lats
}

func TestNewRESTSinkRejectsInvalidEndpoint(t *testing.T) {
	_, err := NewRESTSink(RESTConfig{BaseURL: "not a url"}, nil)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = NewRESTSink(RESTConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestCreateJourneyUsesEchoedRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/navigation_journeys", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var record journey.Record
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		assert.Equal(t, "driving", record.TravelMode)

		record.SessionID = strPtr("server-session")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]journey.Record{record})
	}))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{})
	original := newTestJourney(t)

	created, err := sink.CreateJourney(context.Background(), original)
	require.NoError(t, err)

	assert.Equal(t, original.ID, created.ID)
	assert.Equal(t, "server-session", created.SessionID)
	assert.Equal(t, "", original.SessionID)
}

func strPtr(s string) *string {
	return &s
}

func TestCreateJourneyKeepsSnapshotWithoutEcho(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{})
	original := newTestJourney(t)

	created, err := sink.CreateJourney(context.Background(), original)
	require.NoError(t, err)
	assert.Same(t, original, created)
}

func TestUpdateJourneyReplacesWholeArrays(t *testing.T) {
	var received map[string]json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{})
	j := newTestJourney(t)
	require.NoError(t, j.AppendBreadcrumb(breadcrumbAt(40.1, 1)))
	require.NoError(t, j.AppendBreadcrumb(breadcrumbAt(40.2, 2)))
	require.NoError(t, j.Complete(j.StartedAt.Add(time.Minute)))

	require.NoError(t, sink.UpdateJourney(context.Background(), j))

	var breadcrumbs []journey.BreadcrumbRecord
	require.NoError(t, json.Unmarshal(received["breadcrumbs"], &breadcrumbs))
	assert.Equal(t, []float64{40.1, 40.2}, latitudes(breadcrumbs))
	assert.Equal(t, "true", string(received["completed"]))
	assert.Contains(t, received, "ended_at")
	assert.NotContains(t, received, "destination_address")
}

func TestServerErrorsAreNotRetried(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "boom")
	}))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{MaxAttempts: 3})

	err := sink.UpdateJourney(context.Background(), newTestJourney(t))

	var serverError *ServerError
	require.True(t, errors.As(err, &serverError))
	assert.Equal(t, http.StatusInternalServerError, serverError.Status)
	assert.Equal(t, "boom", serverError.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestTransportErrorsAreRetried(t *testing.T) {
	var calls int32

	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection reset by peer")
	})}

	sink, err := NewRESTSink(RESTConfig{BaseURL: "https://journeys.example.com/rest/v1", MaxAttempts: 3, BaseDelay: time.Millisecond}, client)
	require.NoError(t, err)

	err = sink.UpdateJourney(context.Background(), newTestJourney(t))

	assert.ErrorIs(t, err, ErrUnknown)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTransportRecoversWithinAttemptCeiling(t *testing.T) {
	var calls int32

	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < 2 {
			return nil, errors.New("i/o timeout")
		}
		return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
	})}

	sink, err := NewRESTSink(RESTConfig{BaseURL: "https://journeys.example.com/rest/v1", MaxAttempts: 3, BaseDelay: time.Millisecond}, client)
	require.NoError(t, err)

	require.NoError(t, sink.UpdateJourney(context.Background(), newTestJourney(t)))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAppendBreadcrumbsUsesProcedure(t *testing.T) {
	store := &fakeStore{procedureInstalled: true}
	server := httptest.NewServer(store.handler(t))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{})

	require.NoError(t, sink.AppendBreadcrumbs(context.Background(), "journey-1", []journey.Breadcrumb{breadcrumbAt(40.1, 1)}))

	assert.Equal(t, 1, store.procedureCalls)
	assert.Equal(t, 0, store.gets)
	assert.Equal(t, 0, store.patches)
	assert.Equal(t, []float64{40.1}, latitudes(store.breadcrumbs))
}

func TestAppendBreadcrumbsFallbackPreservesOrder(t *testing.T) {
	store := &fakeStore{
		breadcrumbs: journey.BreadcrumbRecords([]journey.Breadcrumb{breadcrumbAt(40.1, 1), breadcrumbAt(40.2, 2)}),
	}
	server := httptest.NewServer(store.handler(t))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{})

	batch := []journey.Breadcrumb{breadcrumbAt(40.3, 3), breadcrumbAt(40.4, 4)}
	require.NoError(t, sink.AppendBreadcrumbs(context.Background(), "journey-1", batch))
	assert.Equal(t, []float64{40.1, 40.2, 40.3, 40.4}, latitudes(store.breadcrumbs))

	require.NoError(t, sink.AppendBreadcrumbs(context.Background(), "journey-1", []journey.Breadcrumb{breadcrumbAt(40.5, 5)}))
	assert.Equal(t, []float64{40.1, 40.2, 40.3, 40.4, 40.5}, latitudes(store.breadcrumbs))

	// the missing procedure is only called once
	assert.Equal(t, 1, store.procedureCalls)
	assert.Equal(t, 2, store.gets)
	assert.Equal(t, 2, store.patches)
}

func TestAppendCheckpointFallback(t *testing.T) {
	store := &fakeStore{
		checkpoints: []journey.CheckpointRecord{{StepIndex: 0, Instruction: "Head north"}},
	}
	server := httptest.NewServer(store.handler(t))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{})

	require.NoError(t, sink.AppendCheckpoint(context.Background(), "journey-1", journey.Checkpoint{StepIndex: 1, Instruction: "Turn left"}))

	require.Len(t, store.checkpoints, 2)
	assert.Equal(t, "Head north", store.checkpoints[0].Instruction)
	assert.Equal(t, "Turn left", store.checkpoints[1].Instruction)
}

func TestOptimisticConcurrencyRetriesConflicts(t *testing.T) {
	store := &fakeStore{
		breadcrumbs:       journey.BreadcrumbRecords([]journey.Breadcrumb{breadcrumbAt(40.1, 1)}),
		version:           4,
		conflictsToInject: 1,
	}
	server := httptest.NewServer(store.handler(t))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{OptimisticConcurrency: true})

	require.NoError(t, sink.AppendBreadcrumbs(context.Background(), "journey-1", []journey.Breadcrumb{breadcrumbAt(40.2, 2)}))

	assert.Equal(t, []float64{40.1, 40.2}, latitudes(store.breadcrumbs))
	assert.Equal(t, int64(6), store.version)
	assert.Equal(t, 2, store.gets)
	assert.Equal(t, 2, store.patches)
}

func TestOptimisticConcurrencyGivesUp(t *testing.T) {
	store := &fakeStore{conflictsToInject: maxMergeAttempts}
	server := httptest.NewServer(store.handler(t))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{OptimisticConcurrency: true})

	err := sink.AppendBreadcrumbs(context.Background(), "journey-1", []journey.Breadcrumb{breadcrumbAt(40.2, 2)})
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestFetchJourney(t *testing.T) {
	j := newTestJourney(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "eq."+j.ID {
			io.WriteString(w, "[]")
			return
		}
		json.NewEncoder(w).Encode([]journey.Record{journey.ToRecord(j)})
	}))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{})

	fetched, err := sink.FetchJourney(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.Destination, fetched.Destination)
	assert.Equal(t, j.RouteSummary, fetched.RouteSummary)

	_, err = sink.FetchJourney(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchJourneyInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>")
	}))
	defer server.Close()

	sink := newTestSink(t, server.URL, RESTConfig{})

	_, err := sink.FetchJourney(context.Background(), "journey-1")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
