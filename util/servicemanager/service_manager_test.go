package servicemanager

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu       sync.Mutex
	initErr  error
	startErr error
	status   int
	ready    bool
	calls    []string
}

func newFakeService() *fakeService {
	return &fakeService{status: http.StatusOK, ready: true}
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

func (f *fakeService) Health(context.Context, bool) (int, string, error) {
	return f.status, "", nil
}

func (f *fakeService) Init(context.Context) error {
	f.record("init")
	return f.initErr
}

func (f *fakeService) Start(ctx context.Context, readyCh chan<- struct{}) error {
	f.record("start")

	if f.startErr != nil {
		return f.startErr
	}

	if f.ready {
		close(readyCh)
	}

	<-ctx.Done()

	return nil
}

func (f *fakeService) Stop(context.Context) error {
	f.record("stop")
	return nil
}

func newManager(t *testing.T) *ServiceManager {
	t.Helper()

	sm := NewServiceManager(context.Background(), ulogger.New("test", ulogger.WithWriter(io.Discard)))
	t.Cleanup(sm.ForceShutdown)

	return sm
}

func TestListenerInfos(t *testing.T) {
	mu.Lock()
	listeners = nil
	mu.Unlock()

	AddListenerInfo("metrics on :9100")
	AddListenerInfo("health on :8000")

	assert.Equal(t, []string{"health on :8000", "metrics on :9100"}, GetListenerInfos())
}

func TestAddServiceInitFailure(t *testing.T) {
	sm := newManager(t)

	svc := newFakeService()
	svc.initErr = errors.NewConfigurationError("bad config")

	err := sm.AddService("miner", svc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Equal(t, []string{"init"}, svc.Calls())
}

func TestStartReadyAndShutdown(t *testing.T) {
	sm := newManager(t)

	first, second := newFakeService(), newFakeService()

	require.NoError(t, sm.AddService("http", first))
	require.NoError(t, sm.AddService("miner", second))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, sm.WaitForServiceToBeReady(ctx))
	assert.Empty(t, sm.ServicesNotReady())

	sm.ForceShutdown()
	require.NoError(t, sm.Wait())

	assert.Equal(t, []string{"init", "start", "stop"}, first.Calls())
	assert.Equal(t, []string{"init", "start", "stop"}, second.Calls())
}

func TestServiceFailureStopsOthers(t *testing.T) {
	sm := newManager(t)

	healthy, failing := newFakeService(), newFakeService()
	failing.startErr = errors.NewServiceError("mock service failure")

	require.NoError(t, sm.AddService("http", healthy))
	require.NoError(t, sm.AddService("miner", failing))

	err := sm.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock service failure")
	assert.Contains(t, healthy.Calls(), "stop")
}

func TestServicesNotReady(t *testing.T) {
	sm := newManager(t)

	svc := newFakeService()
	svc.ready = false

	require.NoError(t, sm.AddService("miner", svc))

	assert.Equal(t, []string{"miner"}, sm.ServicesNotReady())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sm.WaitForServiceToBeReady(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsContextError(err))
}

func TestHealthHandler(t *testing.T) {
	sm := newManager(t)

	status, _, err := sm.HealthHandler(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	up, down := newFakeService(), newFakeService()
	down.status = http.StatusServiceUnavailable

	require.NoError(t, sm.AddService("http", up))

	status, body, err := sm.HealthHandler(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"resource":"http"`)

	require.NoError(t, sm.AddService("miner", down))

	status, _, err = sm.HealthHandler(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
