package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-runner/internal/collection"
	"collection-runner/internal/logger"
	"collection-runner/internal/models"
	"collection-runner/internal/script"
	"collection-runner/internal/store"
	"collection-runner/internal/version"
)

// fakeTransport records dispatch order and delegates to an optional hook.
type fakeTransport struct {
	requests []models.ResolvedRequest
	hook     func(req *models.ResolvedRequest) (*models.ResponseData, error)
}

func (f *fakeTransport) Send(_ context.Context, req *models.ResolvedRequest) (*models.ResponseData, error) {
	f.requests = append(f.requests, *req)
	if f.hook != nil {
		return f.hook(req)
	}
	return &models.ResponseData{Status: 200, StatusText: "200 OK", Body: "{}"}, nil
}

type fixture struct {
	records     *store.Store
	collections *collection.Service
	transport   *fakeTransport
	runs        *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	records := store.NewMemory()
	versions := version.NewManager(records.Versions, records.Collections, 10)
	collections := collection.NewService(records.Collections, nil, versions, 50)
	transport := &fakeTransport{}
	runs := NewService(collections, records.Environments, records.Runs, transport, script.NewExprHost(), logger.Nop(), time.Second)
	return &fixture{records: records, collections: collections, transport: transport, runs: runs}
}

func (f *fixture) createCollection(t *testing.T, vars map[string]string) *models.Collection {
	t.Helper()
	c, err := f.collections.Create(context.Background(), "Suite", "", "", vars)
	require.NoError(t, err)
	return c
}

func (f *fixture) addRequest(t *testing.T, collectionID, parentID, name, url string) *models.Item {
	t.Helper()
	item, err := f.collections.CreateItem(context.Background(), collectionID, collection.CreateItemParams{
		ParentID: parentID,
		Name:     name,
		Type:     models.ItemTypeRequest,
		Request:  &models.RequestSpec{Method: "GET", URL: url, Body: models.Body{Mode: models.BodyModeNone}},
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) waitForRun(t *testing.T, runID string) *models.Run {
	t.Helper()
	var run *models.Run
	require.Eventually(t, func() bool {
		var err error
		run, err = f.runs.GetRun(context.Background(), runID)
		if err != nil {
			return false
		}
		switch run.Status {
		case models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
			return true
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return run
}

func TestRunEmptyCollectionCompletes(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, started.Status)

	run := f.waitForRun(t, started.ID)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.RunCounters{}, run.Counters)
	assert.Empty(t, run.Results)
	assert.False(t, run.FinishedAt.IsZero())
}

func TestRunExecutesInTreeOrder(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)

	folder, err := f.collections.CreateItem(context.Background(), c.ID, collection.CreateItemParams{
		Name: "Group", Type: models.ItemTypeFolder,
	})
	require.NoError(t, err)
	f.addRequest(t, c.ID, folder.ID, "first", "https://e.x/1")
	f.addRequest(t, c.ID, folder.ID, "second", "https://e.x/2")
	f.addRequest(t, c.ID, "", "third", "https://e.x/3")

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)
	run := f.waitForRun(t, started.ID)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	require.Len(t, run.Results, 3)
	assert.Equal(t, "first", run.Results[0].Name)
	assert.Equal(t, "second", run.Results[1].Name)
	assert.Equal(t, "third", run.Results[2].Name)
	assert.Equal(t, models.RunCounters{Total: 3, Passed: 3}, run.Counters)
}

func TestRunTransportFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)
	f.addRequest(t, c.ID, "", "ok", "https://e.x/ok")
	f.addRequest(t, c.ID, "", "broken", "https://e.x/broken")
	f.addRequest(t, c.ID, "", "also ok", "https://e.x/ok2")

	f.transport.hook = func(req *models.ResolvedRequest) (*models.ResponseData, error) {
		if req.URL == "https://e.x/broken" {
			return nil, errors.New("connection refused")
		}
		return &models.ResponseData{Status: 200, StatusText: "200 OK"}, nil
	}

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)
	run := f.waitForRun(t, started.ID)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.Len(t, run.Results, 3)
	assert.Equal(t, models.ResultStatusCompleted, run.Results[0].Status)
	assert.Equal(t, models.ResultStatusFailed, run.Results[1].Status)
	assert.Contains(t, run.Results[1].Error, "connection refused")
	assert.Equal(t, models.ResultStatusCompleted, run.Results[2].Status)
	assert.Equal(t, models.RunCounters{Total: 3, Passed: 2, Failed: 1}, run.Counters)
}

func TestRunCancelSkipsRemainingItems(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)
	f.addRequest(t, c.ID, "", "one", "https://e.x/1")
	f.addRequest(t, c.ID, "", "two", "https://e.x/2")
	f.addRequest(t, c.ID, "", "three", "https://e.x/3")

	inFlight := make(chan struct{})
	release := make(chan struct{})
	f.transport.hook = func(req *models.ResolvedRequest) (*models.ResponseData, error) {
		if req.URL == "https://e.x/1" {
			close(inFlight)
			<-release
		}
		return &models.ResponseData{Status: 200, StatusText: "200 OK"}, nil
	}

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)

	// Cancel while the first request is still in flight.
	<-inFlight
	require.NoError(t, f.runs.CancelRun(context.Background(), started.ID))
	close(release)

	run := f.waitForRun(t, started.ID)
	assert.Equal(t, models.RunStatusCancelled, run.Status)
	require.Len(t, run.Results, 3)
	// The in-flight request keeps its result, everything after is skipped.
	assert.Equal(t, models.ResultStatusCompleted, run.Results[0].Status)
	assert.Equal(t, models.ResultStatusSkipped, run.Results[1].Status)
	assert.Equal(t, models.ResultStatusSkipped, run.Results[2].Status)
	assert.Equal(t, 2, run.Counters.Skipped)
}

func TestCancelFinishedRun(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)
	f.waitForRun(t, started.ID)

	err = f.runs.CancelRun(context.Background(), started.ID)
	assert.ErrorIs(t, err, ErrRunFinished)

	err = f.runs.CancelRun(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunVariablePropagation(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)

	_, err := f.collections.CreateItem(context.Background(), c.ID, collection.CreateItemParams{
		Name:             "setter",
		Type:             models.ItemTypeRequest,
		PreRequestScript: `set("order_id", "42")`,
		Request:          &models.RequestSpec{Method: "GET", URL: "https://e.x/orders", Body: models.Body{Mode: models.BodyModeNone}},
	})
	require.NoError(t, err)
	f.addRequest(t, c.ID, "", "reader", "https://e.x/orders/{{order_id}}")

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)
	run := f.waitForRun(t, started.ID)

	require.Len(t, run.Results, 2)
	// The setter's own URL was resolved before its script ran.
	assert.Equal(t, "https://e.x/orders", run.Results[0].Request.URL)
	assert.Equal(t, "https://e.x/orders/42", run.Results[1].Request.URL)
}

func TestRunEnvironmentAndCollectionPrecedence(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, map[string]string{"host": "collection.example"})

	env := &models.Environment{
		ID:   "env-1",
		Name: "staging",
		Variables: []models.Variable{
			{Key: "host", Value: "env.example", Enabled: true},
			{Key: "region", Value: "eu", Enabled: true},
			{Key: "off", Value: "x", Enabled: false},
		},
	}
	require.NoError(t, f.records.Environments.Create(context.Background(), env))

	f.addRequest(t, c.ID, "", "r", "https://{{host}}/{{region}}/{{off}}")

	started, err := f.runs.StartRun(context.Background(), c.ID, env.ID, Options{})
	require.NoError(t, err)
	run := f.waitForRun(t, started.ID)

	require.Len(t, run.Results, 1)
	// Collection variables win over the environment; disabled variables do not
	// resolve at all.
	assert.Equal(t, "https://collection.example/eu/{{off}}", run.Results[0].Request.URL)
}

func TestRunFailedAssertionFailsRequest(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)

	_, err := f.collections.CreateItem(context.Background(), c.ID, collection.CreateItemParams{
		Name:       "checked",
		Type:       models.ItemTypeRequest,
		TestScript: `assert(response.status == 201, "created")`,
		Request:    &models.RequestSpec{Method: "GET", URL: "https://e.x/r", Body: models.Body{Mode: models.BodyModeNone}},
	})
	require.NoError(t, err)

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)
	run := f.waitForRun(t, started.ID)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.Len(t, run.Results, 1)
	result := run.Results[0]
	assert.Equal(t, models.ResultStatusFailed, result.Status)
	require.NotNil(t, result.Response)
	assert.Equal(t, 200, result.Response.Status)
	require.Len(t, result.Assertions, 1)
	assert.False(t, result.Assertions[0].Passed)
}

func TestRunSnapshotIgnoresConcurrentEdits(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)
	f.addRequest(t, c.ID, "", "r1", "https://e.x/1")

	release := make(chan struct{})
	f.transport.hook = func(*models.ResolvedRequest) (*models.ResponseData, error) {
		<-release
		return &models.ResponseData{Status: 200, StatusText: "200 OK"}, nil
	}

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)

	// An item added after the run started is not part of it.
	f.addRequest(t, c.ID, "", "late", "https://e.x/late")
	close(release)

	run := f.waitForRun(t, started.ID)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Len(t, run.Results, 1)
}

func TestRunDelayClampedToMax(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)
	f.addRequest(t, c.ID, "", "a", "https://e.x/a")
	f.addRequest(t, c.ID, "", "b", "https://e.x/b")

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{Delay: time.Hour})
	require.NoError(t, err)

	// Max delay in the fixture is one second; an hour-long delay per request
	// would blow well past this deadline.
	run := f.waitForRun(t, started.ID)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Len(t, run.Results, 2)
}

func TestExecuteSingle(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, map[string]string{"host": "e.x"})
	item := f.addRequest(t, c.ID, "", "ping", "https://{{host}}/ping")

	result, err := f.runs.ExecuteSingle(context.Background(), c.ID, item.ID, "")
	require.NoError(t, err)

	assert.Equal(t, models.ResultStatusCompleted, result.Status)
	assert.Equal(t, "https://e.x/ping", result.Request.URL)
	require.NotNil(t, result.Response)
	assert.Equal(t, 200, result.Response.Status)
}

func TestExecuteSingleRejectsFolders(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)
	folder, err := f.collections.CreateItem(context.Background(), c.ID, collection.CreateItemParams{
		Name: "F", Type: models.ItemTypeFolder,
	})
	require.NoError(t, err)

	_, err = f.runs.ExecuteSingle(context.Background(), c.ID, folder.ID, "")
	assert.ErrorIs(t, err, ErrNotExecutable)

	_, err = f.runs.ExecuteSingle(context.Background(), c.ID, "no-such-item", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)
	c := f.createCollection(t, nil)

	started, err := f.runs.StartRun(context.Background(), c.ID, "", Options{})
	require.NoError(t, err)
	f.waitForRun(t, started.ID)

	runs, err := f.runs.ListRuns(context.Background(), c.ID, store.Page{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, started.ID, runs[0].ID)
}
