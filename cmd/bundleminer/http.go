package bundleminer

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/bundleminer/bundleminer/util/servicemanager"
	"github.com/felixge/fgprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthFunc func(ctx context.Context, checkLiveness bool) (int, string, error)

// httpService serves /metrics and the /health/liveness and /health/readiness probes.
// With profiling enabled it also serves /debug/fgprof.
type httpService struct {
	logger  ulogger.Logger
	address string
	health  healthFunc
	e       *echo.Echo
	ln      net.Listener

	shutdownOnce sync.Once
	shutdownErr  error
}

func newHTTPService(logger ulogger.Logger, address string, health healthFunc, profiler bool) *httpService {
	h := &httpService{logger: logger, address: address, health: health}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 5 * time.Second

	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health/liveness", h.probe(true))
	e.GET("/health/readiness", h.probe(false))

	if profiler {
		e.GET("/debug/fgprof", echo.WrapHandler(fgprof.Handler()))
	}

	h.e = e

	return h
}

func (h *httpService) handler() http.Handler {
	return h.e
}

func (h *httpService) probe(checkLiveness bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		status, details, err := h.health(c.Request().Context(), checkLiveness)
		if err != nil {
			h.logger.Warnf("[HTTP] health check failed: %v", err)
		}

		return c.JSONBlob(status, []byte(details))
	}
}

func (h *httpService) Health(_ context.Context, _ bool) (int, string, error) {
	if h.ln == nil {
		return http.StatusServiceUnavailable, "not listening", nil
	}

	return http.StatusOK, "OK", nil
}

func (h *httpService) Init(_ context.Context) error {
	ln, err := net.Listen("tcp", h.address)
	if err != nil {
		return errors.NewConfigurationError("[HTTP] failed to listen on %s", h.address, err)
	}

	h.ln = ln
	h.e.Listener = ln

	return nil
}

func (h *httpService) Start(ctx context.Context, readyCh chan<- struct{}) error {
	servicemanager.AddListenerInfo("metrics and health on " + h.ln.Addr().String())
	h.logger.Infof("[HTTP] listening on %s", h.ln.Addr())

	errCh := make(chan error, 1)

	go func() {
		// the listener set in Init takes precedence over the address
		errCh <- h.e.Start(h.address)
	}()

	close(readyCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.shutdown(shutdownCtx); err != nil {
			h.logger.Errorf("[HTTP] shutdown error: %v", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return errors.NewServiceError("[HTTP] server stopped", err)
	}
}

func (h *httpService) Stop(ctx context.Context) error {
	if h.ln == nil {
		return nil
	}

	return h.shutdown(ctx)
}

// shutdown stops the server once; Start and Stop may both ask for it.
func (h *httpService) shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.shutdownErr = h.e.Shutdown(ctx)
	})

	return h.shutdownErr
}
