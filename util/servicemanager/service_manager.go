package servicemanager

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util/health"
	"golang.org/x/sync/errgroup"
)

const (
	startTimeout = 5 * time.Second
	stopTimeout  = 5 * time.Second
)

type serviceWrapper struct {
	name     string
	instance Service
	index    int
	readyCh  chan struct{}
}

var (
	mu        sync.RWMutex
	listeners []string
)

// ServiceManager starts services in registration order, stops them in reverse order and cancels
// all of them as soon as one fails or the process receives SIGINT or SIGTERM.
type ServiceManager struct {
	services              []serviceWrapper
	dependencyChannelsMux sync.Mutex
	dependencyChannels    []chan bool
	logger                ulogger.Logger
	Ctx                   context.Context
	cancelFunc            context.CancelFunc
	g                     *errgroup.Group
	startTimeout          time.Duration
}

func NewServiceManager(ctx context.Context, logger ulogger.Logger) *ServiceManager {
	ctx, cancelFunc := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	sm := &ServiceManager{
		services:     make([]serviceWrapper, 0),
		logger:       logger,
		Ctx:          ctx,
		cancelFunc:   cancelFunc,
		g:            g,
		startTimeout: startTimeout,
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			sm.logger.Infof("🟠 Received shutdown signal. Stopping services...")
			sm.cancelFunc()
		case <-ctx.Done():
		}
	}()

	return sm
}

// AddListenerInfo records a listening address for the startup summary.
func AddListenerInfo(name string) {
	mu.Lock()
	defer mu.Unlock()

	listeners = append(listeners, name)
}

// GetListenerInfos returns the recorded listeners, sorted.
func GetListenerInfos() []string {
	mu.RLock()
	defer mu.RUnlock()

	sortedListeners := make([]string, len(listeners))
	copy(sortedListeners, listeners)
	sort.Strings(sortedListeners)

	return sortedListeners
}

// AddService initialises the service and starts it in the background once the previously added
// service has started.
func (sm *ServiceManager) AddService(name string, service Service) error {
	sm.dependencyChannelsMux.Lock()
	sm.dependencyChannels = append(sm.dependencyChannels, make(chan bool))

	sw := serviceWrapper{
		name:     name,
		instance: service,
		index:    len(sm.dependencyChannels) - 1,
		readyCh:  make(chan struct{}),
	}

	sm.dependencyChannelsMux.Unlock()

	sm.services = append(sm.services, sw)

	sm.logger.Infof("⚪️ Initializing service %s...", name)

	if err := service.Init(sm.Ctx); err != nil {
		return errors.NewServiceError("failed to initialise service %s", name, err)
	}

	sm.logger.Infof("🟢 Starting service %s...", name)

	sm.g.Go(func() error {
		if sw.index > 0 {
			sm.dependencyChannelsMux.Lock()
			channel := sm.dependencyChannels[sw.index-1]
			sm.dependencyChannelsMux.Unlock()

			if err := sm.waitForPreviousServiceToStart(sw, channel); err != nil {
				return err
			}
		}

		sm.dependencyChannelsMux.Lock()
		close(sm.dependencyChannels[sw.index])
		sm.dependencyChannelsMux.Unlock()

		if err := service.Start(sm.Ctx, sw.readyCh); err != nil {
			sm.logger.Errorf("Error from service start %s: %v", name, err)
			return err
		}

		return nil
	})

	return nil
}

// WaitForServiceToBeReady blocks until every service has closed its ready channel or ctx is done.
func (sm *ServiceManager) WaitForServiceToBeReady(ctx context.Context) error {
	for _, service := range sm.services {
		select {
		case <-service.readyCh:
			sm.logger.Infof("🟢 Service %s is ready", service.name)
		case <-ctx.Done():
			return errors.NewContextCanceledError("stopped waiting for service %s", service.name, ctx.Err())
		}
	}

	return nil
}

// ServicesNotReady lists the services that have not closed their ready channel.
func (sm *ServiceManager) ServicesNotReady() []string {
	var notReadyServices []string

	for _, service := range sm.services {
		select {
		case <-service.readyCh:
		default:
			notReadyServices = append(notReadyServices, service.name)
		}
	}

	return notReadyServices
}

func (sm *ServiceManager) waitForPreviousServiceToStart(sw serviceWrapper, channel chan bool) error {
	timer := time.NewTimer(sm.startTimeout)
	defer timer.Stop()

	select {
	case <-channel:
		return nil
	case <-sm.Ctx.Done():
		return sm.Ctx.Err()
	case <-timer.C:
		return errors.NewServiceError("%s (index %d) timed out waiting for previous service to start", sw.name, sw.index)
	}
}

// ForceShutdown cancels every service.
func (sm *ServiceManager) ForceShutdown() {
	sm.cancelFunc()
}

// Wait blocks until all services return, then stops them in reverse order. A shutdown through
// cancellation is not an error.
func (sm *ServiceManager) Wait() error {
	err := sm.g.Wait()
	if err != nil && !errors.IsContextError(err) {
		sm.logger.Errorf("Received error: %v", err)
	}

	for i := len(sm.services) - 1; i >= 0; i-- {
		service := sm.services[i]

		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)

		sm.logger.Infof("🟠 Stopping service %s...", service.name)

		if stopErr := service.instance.Stop(stopCtx); stopErr != nil {
			sm.logger.Warnf("[%s] Failed to stop service: %v", service.name, stopErr)
		} else {
			sm.logger.Infof("[%s] Service stopped gracefully", service.name)
		}

		stopCancel()
	}

	sm.cancelFunc()

	sm.logger.Infof("🛑 All services stopped.")

	if errors.IsContextError(err) {
		return nil
	}

	return err
}

// HealthHandler aggregates the health of all services.
func (sm *ServiceManager) HealthHandler(ctx context.Context, checkLiveness bool) (int, string, error) {
	checks := make([]health.Check, 0, len(sm.services))

	for _, service := range sm.services {
		checks = append(checks, health.Check{Name: service.name, Check: service.instance.Health})
	}

	if len(checks) == 0 {
		return http.StatusServiceUnavailable, `{"status":"503","dependencies":[]}`, nil
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}
