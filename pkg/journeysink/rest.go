package journeysink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
)

const maxMergeAttempts = 3

const (
	breadcrumbsProcedure = "append_journey_breadcrumbs"
	checkpointProcedure  = "append_journey_checkpoint"
)

// RESTSink talks to a PostgREST style API (Supabase and friends). The API has
// no array append so appends go through a stored procedure when one is
// installed and fall back to fetch, merge and replace otherwise.
type RESTSink struct {
	config  RESTConfig
	baseURL *url.URL
	client  *http.Client

	// procedures the server reported as missing, skipped on later appends
	missingProcedures sync.Map
}

func NewRESTSink(config RESTConfig, client *http.Client) (*RESTSink, error) {
	config = config.withDefaults()

	baseURL, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, config.BaseURL)
	}

	if client == nil {
		client = &http.Client{Timeout: config.RequestTimeout}
	}

	return &RESTSink{
		config:  config,
		baseURL: baseURL,
		client:  client,
	}, nil
}

type request struct {
	method string
	path   string
	query  url.Values
	prefer string
	body   interface{}
}

func (s *RESTSink) endpoint(path string, query url.Values) string {
	endpoint := *s.baseURL
	endpoint.Path = endpoint.Path + "/" + path
	endpoint.RawQuery = query.Encode()

	return endpoint.String()
}

func (s *RESTSink) retryPolicy(ctx context.Context) backoff.BackOff {
	exponential := &backoff.ExponentialBackOff{
		InitialInterval:     s.config.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         s.config.BaseDelay << uint(s.config.MaxAttempts),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exponential.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(s.config.MaxAttempts-1)), ctx)
}

// do performs a request with the retry policy. Transport failures are retried,
// any response outside 2xx is returned straight away as a *ServerError.
func (s *RESTSink) do(ctx context.Context, r request) ([]byte, error) {
	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return nil, err
		}
	}

	endpoint := s.endpoint(r.path, r.query)

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, r.method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrInvalidEndpoint, err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if s.config.APIKey != "" {
			req.Header.Set("apikey", s.config.APIKey)
			req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
		}
		if r.prefer != "" {
			req.Header.Set("Prefer", r.prefer)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, backoff.Permanent(&ServerError{Status: resp.StatusCode, Body: string(body)})
		}

		return body, nil
	}

	body, err := backoff.RetryNotifyWithData(operation, s.retryPolicy(ctx), func(err error, wait time.Duration) {
		log.Debug().Err(err).
			Str("method", r.method).
			Str("path", r.path).
			Str("wait", wait.String()).
			Msg("Retrying journey store request")
	})
	if err != nil {
		var serverError *ServerError
		if errors.As(err, &serverError) || errors.Is(err, ErrInvalidEndpoint) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnknown, r.method, r.path, err)
	}

	return body, nil
}

func idFilter(journeyID string) url.Values {
	return url.Values{"id": {"eq." + journeyID}}
}

func (s *RESTSink) CreateJourney(ctx context.Context, j *journey.Journey) (*journey.Journey, error) {
	body, err := s.do(ctx, request{
		method: http.MethodPost,
		path:   s.config.Table,
		prefer: "return=representation",
		body:   journey.ToRecord(j),
	})
	if err != nil {
		return nil, err
	}

	var records []journey.Record
	if err := json.Unmarshal(body, &records); err != nil || len(records) == 0 {
		log.Debug().Str("journey", j.ID).Msg("Journey store did not echo the created record")
		return j, nil
	}

	return records[0].ToJourney(), nil
}

// updateRecord holds the columns that change after creation
type updateRecord struct {
	EndedAt   *time.Time `json:"ended_at"`
	Completed bool       `json:"completed"`
	Cancelled bool       `json:"cancelled"`

	TotalDistanceMeters  *int `json:"total_distance_meters"`
	TotalDurationSeconds *int `json:"total_duration_seconds"`
	TotalSteps           *int `json:"total_steps"`

	Checkpoints []journey.CheckpointRecord `json:"checkpoints"`
	Breadcrumbs []journey.BreadcrumbRecord `json:"breadcrumbs"`

	RerouteCount  int        `json:"reroute_count"`
	LastRerouteAt *time.Time `json:"last_reroute_at"`
}

func newUpdateRecord(record journey.Record) updateRecord {
	return updateRecord{
		EndedAt:              record.EndedAt,
		Completed:            record.Completed,
		Cancelled:            record.Cancelled,
		TotalDistanceMeters:  record.TotalDistanceMeters,
		TotalDurationSeconds: record.TotalDurationSeconds,
		TotalSteps:           record.TotalSteps,
		Checkpoints:          record.Checkpoints,
		Breadcrumbs:          record.Breadcrumbs,
		RerouteCount:         record.RerouteCount,
		LastRerouteAt:        record.LastRerouteAt,
	}
}

func (s *RESTSink) UpdateJourney(ctx context.Context, j *journey.Journey) error {
	_, err := s.do(ctx, request{
		method: http.MethodPatch,
		path:   s.config.Table,
		query:  idFilter(j.ID),
		prefer: "return=minimal",
		body:   newUpdateRecord(journey.ToRecord(j)),
	})

	return err
}

func (s *RESTSink) AppendBreadcrumbs(ctx context.Context, journeyID string, batch []journey.Breadcrumb) error {
	if len(batch) == 0 {
		return nil
	}

	records := journey.BreadcrumbRecords(batch)

	err := s.callProcedure(ctx, breadcrumbsProcedure, map[string]interface{}{
		"journey_id":      journeyID,
		"new_breadcrumbs": records,
	})
	if err == nil {
		return nil
	}

	log.Debug().Err(err).Str("journey", journeyID).Msg("Atomic breadcrumb append unavailable, merging instead")

	return appendByReplace(ctx, s, journeyID, "breadcrumbs", records)
}

func (s *RESTSink) AppendCheckpoint(ctx context.Context, journeyID string, checkpoint journey.Checkpoint) error {
	record := journey.NewCheckpointRecord(checkpoint)

	err := s.callProcedure(ctx, checkpointProcedure, map[string]interface{}{
		"journey_id":     journeyID,
		"new_checkpoint": record,
	})
	if err == nil {
		return nil
	}

	log.Debug().Err(err).Str("journey", journeyID).Msg("Atomic checkpoint append unavailable, merging instead")

	return appendByReplace(ctx, s, journeyID, "checkpoints", []journey.CheckpointRecord{record})
}

func (s *RESTSink) FetchJourney(ctx context.Context, journeyID string) (*journey.Journey, error) {
	query := idFilter(journeyID)
	query.Set("select", "*")

	body, err := s.do(ctx, request{
		method: http.MethodGet,
		path:   s.config.Table,
		query:  query,
	})
	if err != nil {
		return nil, err
	}

	var records []journey.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	return records[0].ToJourney(), nil
}

var errProcedureMissing = errors.New("procedure not installed")

func (s *RESTSink) callProcedure(ctx context.Context, name string, args interface{}) error {
	if _, missing := s.missingProcedures.Load(name); missing {
		return errProcedureMissing
	}

	_, err := s.do(ctx, request{
		method: http.MethodPost,
		path:   "rpc/" + name,
		prefer: "return=minimal",
		body:   args,
	})

	var serverError *ServerError
	if errors.As(err, &serverError) && serverError.Status == http.StatusNotFound {
		s.missingProcedures.Store(name, true)
	}

	return err
}

// appendByReplace is a read-modify-write of one array column. Without
// optimistic concurrency two writers appending to the same journey at the same
// time can lose each other's items.
func appendByReplace[T any](ctx context.Context, s *RESTSink, journeyID string, column string, items []T) error {
	attempts := 1
	if s.config.OptimisticConcurrency {
		attempts = maxMergeAttempts
	}

	for attempt := 0; attempt < attempts; attempt++ {
		existing, version, err := fetchColumn[T](ctx, s, journeyID, column)
		if err != nil {
			return err
		}

		merged := make([]T, 0, len(existing)+len(items))
		merged = append(merged, existing...)
		merged = append(merged, items...)

		if !s.config.OptimisticConcurrency {
			_, err = s.do(ctx, request{
				method: http.MethodPatch,
				path:   s.config.Table,
				query:  idFilter(journeyID),
				prefer: "return=minimal",
				body:   map[string]interface{}{column: merged},
			})

			return err
		}

		query := idFilter(journeyID)
		query.Set("version", fmt.Sprintf("eq.%d", version))

		body, err := s.do(ctx, request{
			method: http.MethodPatch,
			path:   s.config.Table,
			query:  query,
			prefer: "return=representation",
			body:   map[string]interface{}{column: merged, "version": version + 1},
		})
		if err != nil {
			return err
		}

		var updated []json.RawMessage
		if err := json.Unmarshal(body, &updated); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if len(updated) > 0 {
			return nil
		}

		log.Warn().
			Str("journey", journeyID).
			Str("column", column).
			Int64("version", version).
			Msg("Journey changed during merge, retrying")
	}

	return ErrConcurrentModification
}

func fetchColumn[T any](ctx context.Context, s *RESTSink, journeyID string, column string) ([]T, int64, error) {
	selectColumns := column
	if s.config.OptimisticConcurrency {
		selectColumns += ",version"
	}

	query := idFilter(journeyID)
	query.Set("select", selectColumns)

	body, err := s.do(ctx, request{
		method: http.MethodGet,
		path:   s.config.Table,
		query:  query,
	})
	if err != nil {
		return nil, 0, err
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(rows) == 0 {
		return nil, 0, ErrNotFound
	}

	var items []T
	if raw, ok := rows[0][column]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, fmt.Errorf("%w: %s: %v", ErrInvalidResponse, column, err)
		}
	}

	var version int64
	if raw, ok := rows[0]["version"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &version); err != nil {
			return nil, 0, fmt.Errorf("%w: version: %v", ErrInvalidResponse, err)
		}
	}

	return items, version, nil
}
