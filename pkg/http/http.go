package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/pve-tools/proxmox-mcp-server/pkg/config"
	"github.com/pve-tools/proxmox-mcp-server/pkg/mcp"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
	"github.com/pve-tools/proxmox-mcp-server/pkg/rest"
)

const (
	healthEndpoint     = "/healthz"
	statsEndpoint      = "/stats"
	metricsEndpoint    = "/metrics"
	mcpEndpoint        = "/mcp"
	sseEndpoint        = "/sse"
	sseMessageEndpoint = "/message"
	restPrefix         = "/api/v1/"
)

// metricsMiddleware wraps an HTTP handler to record metrics for all requests
func metricsMiddleware(next http.Handler, mcpServer *mcp.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		mcpServer.GetMetrics().RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

// statsHandler returns an HTTP handler that exposes server statistics as JSON.
func statsHandler(mcpServer *mcp.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		stats := mcpServer.GetMetrics().GetStats()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			klog.V(1).Infof("Failed to encode stats response: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}
}

func Serve(ctx context.Context, mcpServer *mcp.Server, client proxmox.Client, staticConfig *config.StaticConfig) error {
	mux := http.NewServeMux()

	wrappedMux := RequestMiddleware(mux)

	// Wrap with metrics middleware
	instrumentedHandler := metricsMiddleware(wrappedMux, mcpServer)

	httpServer := &http.Server{
		Addr:              ":" + staticConfig.Port,
		Handler:           instrumentedHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sseServer := mcpServer.ServeSse()
	streamableHttpServer := mcpServer.ServeHTTP()
	mux.Handle(sseEndpoint, sseServer)
	mux.Handle(sseMessageEndpoint, sseServer)
	mux.Handle(mcpEndpoint, streamableHttpServer)
	mux.HandleFunc(healthEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(statsEndpoint, statsHandler(mcpServer))
	mux.Handle(metricsEndpoint, mcpServer.GetMetrics().PrometheusHandler())
	mux.Handle(restPrefix, rest.NewServer(client, staticConfig).Handler())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		klog.V(0).Infof("HTTP server starting on port %s (endpoints: /mcp, /sse, /message, /api/v1, /healthz, /stats, /metrics)", staticConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		klog.V(0).Infof("Received signal %v, initiating graceful shutdown", sig)
		cancel()
	case <-ctx.Done():
		klog.V(0).Infof("Context cancelled, initiating graceful shutdown")
	case err := <-serverErr:
		klog.Errorf("HTTP server error: %v", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	klog.V(0).Infof("Shutting down HTTP server gracefully...")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("HTTP server shutdown error: %v", err)
		return err
	}

	klog.V(0).Infof("HTTP server shutdown complete")
	return nil
}
