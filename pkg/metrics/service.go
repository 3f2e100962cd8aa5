package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Service serves Prometheus metrics on all configured addresses.
type Service struct {
	http    []*http.Server
	config  config.BasicService
	log     *zap.Logger
	started sync.WaitGroup
}

// NewService creates a Prometheus service. It doesn't start anything.
func NewService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:    addr,
			Handler: promhttp.Handler(),
		}
	}
	return &Service{
		http:   srvs,
		config: cfg,
		log:    log.With(zap.String("service", "Prometheus")),
	}
}

// Start runs http servers with the exposed endpoint on the configured
// addresses. Listening errors are returned, serving happens in background.
func (ms *Service) Start() error {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return nil
	}
	for _, srv := range ms.http {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			ms.ShutDown()
			return err
		}
		srv.Addr = ln.Addr().String()
		ms.log.Info("service is running", zap.String("endpoint", srv.Addr))
		ms.started.Add(1)
		go func(srv *http.Server, ln net.Listener) {
			defer ms.started.Done()
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to serve", zap.String("endpoint", srv.Addr), zap.Error(err))
			}
		}(srv, ln)
	}
	return nil
}

// Addresses returns the listening addresses (actual ones after Start).
func (ms *Service) Addresses() []string {
	res := make([]string, len(ms.http))
	for i := range ms.http {
		res[i] = ms.http[i].Addr
	}
	return res
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.config.Enabled {
		return
	}
	for _, srv := range ms.http {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
	ms.started.Wait()
}
