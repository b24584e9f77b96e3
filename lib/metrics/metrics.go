// Package metrics serves the transfer and http metrics to prometheus
package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rclone/ftpfetch/fs"
	"github.com/rclone/ftpfetch/fs/accounting"
	"github.com/rclone/ftpfetch/fs/fshttp"
)

// Namespace prefixes the name of every metric
const Namespace = "ftpfetch"

const path = "/metrics"

// Server serves the metrics over http
type Server struct {
	ln     net.Listener
	server *http.Server
	done   chan struct{}
}

// NewRegistry installs DefaultMetrics for accounting and fshttp and
// returns a registry holding them and the process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	transfers := accounting.NewMetrics(Namespace)
	registry.MustRegister(transfers.Collectors()...)
	accounting.DefaultMetrics = transfers

	responses := fshttp.NewMetrics(Namespace)
	registry.MustRegister(responses.Collectors()...)
	fshttp.DefaultMetrics = responses

	return registry
}

// Start serves the metrics on addr in the background
//
// Use Shutdown to stop it.
func Start(ctx context.Context, addr string) (*Server, error) {
	registry := NewRegistry()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start metrics server")
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s := &Server{
		ln: ln,
		server: &http.Server{
			Handler:     mux,
			BaseContext: func(net.Listener) context.Context { return ctx },
		},
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		err := s.server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			fs.Errorf(nil, "Metrics server failed: %v", err)
		}
	}()
	fs.Infof(nil, "Serving metrics on http://%s%s", s.Addr(), path)
	return s, nil
}

// Addr returns the address the server is listening on
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Shutdown stops the server and waits for it to finish
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
