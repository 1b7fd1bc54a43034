// Package rpc serves a node over HTTP: a connect service with a JSON codec
// plus health, readiness and metrics endpoints.
package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Cogwheel-Validator/spectra-entry-point/app"
	"github.com/Cogwheel-Validator/spectra-entry-point/config"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "rpc").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// ServerConfig holds configuration for the RPC server
type ServerConfig struct {
	Address               string
	AllowedOrigins        []string
	EnableMetrics         bool
	RatePerMinute         int
	MaxConcurrentRequests int
	OTelConfig            *OTelConfig
}

// ServerConfigFrom builds the server configuration from the node configuration.
func ServerConfigFrom(cfg *config.Config) *ServerConfig {
	return &ServerConfig{
		Address:               net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		AllowedOrigins:        cfg.AllowedOrigins,
		EnableMetrics:         cfg.UsePrometheus,
		RatePerMinute:         cfg.RatePerMinute,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		OTelConfig:            OTelConfigFrom(cfg),
	}
}

// Server wraps the HTTP server and provides lifecycle management
type Server struct {
	config       *ServerConfig
	httpServer   *http.Server
	otelShutdown func(context.Context) error
}

// NewServer builds the HTTP server for node. Telemetry failures are logged
// and the server runs without it.
func NewServer(ctx context.Context, cfg *ServerConfig, node *app.Node) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc server needs a node")
	}

	var otelShutdown func(context.Context) error
	if cfg.OTelConfig.enabled() {
		shutdown, err := NewOTelSDK(ctx, cfg.OTelConfig)
		if err != nil {
			Logger.Error().Err(err).Msg("Failed to initialize OpenTelemetry")
		} else {
			otelShutdown = shutdown
		}
	}

	handler := newHandler(cfg, node)
	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{config: cfg, httpServer: httpServer, otelShutdown: otelShutdown}, nil
}

// newHandler assembles the middleware chain, the service and the probes.
func newHandler(cfg *ServerConfig, node *app.Node) http.Handler {
	mux := chi.NewMux()
	mux.Use(requestIDMiddleware)
	mux.Use(middleware.RequestID)
	mux.Use(zerologMiddleware)
	mux.Use(zerologRecoverer)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Compress(5))
	mux.Use(middleware.Timeout(60 * time.Second))
	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))
	}
	if cfg.MaxConcurrentRequests > 0 {
		mux.Use(middleware.Throttle(cfg.MaxConcurrentRequests))
	}

	if cfg.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"healthy","service":"spectra-entry-point"}`)
	})
	mux.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		contracts, err := node.Host.Contracts(r.Context())
		if err != nil {
			Logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, `{"status":"unavailable"}`)
			return
		}
		if _, ok := contracts[node.EntryPoint]; !ok {
			writeJSON(w, http.StatusServiceUnavailable, `{"status":"not deployed"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"status":"ready"}`)
	})

	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithRecover(recoverHandler),
		connect.WithInterceptors(loggingInterceptor()),
	}
	if cfg.OTelConfig != nil && cfg.OTelConfig.EnableTracing {
		interceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			Logger.Warn().Err(err).Msg("Failed to create OTEL interceptor, continuing without it")
		} else {
			opts = append(opts, connect.WithInterceptors(interceptor))
		}
	}

	srv := NewEntryPointServer(node)
	mux.Handle(ExecuteProcedure, connect.NewUnaryHandler(ExecuteProcedure, srv.Execute, opts...))
	mux.Handle(QueryProcedure, connect.NewUnaryHandler(QueryProcedure, srv.Query, opts...))
	mux.Handle(DeliverAckProcedure, connect.NewUnaryHandler(DeliverAckProcedure, srv.DeliverAck, opts...))
	mux.Handle(DeliverTimeoutProcedure, connect.NewUnaryHandler(DeliverTimeoutProcedure, srv.DeliverTimeout, opts...))
	mux.Handle(BalanceProcedure, connect.NewUnaryHandler(BalanceProcedure, srv.Balance, opts...))
	mux.Handle(SimulateProcedure, connect.NewUnaryHandler(SimulateProcedure, srv.Simulate, opts...))
	mux.Handle(PendingPacketsProcedure, connect.NewUnaryHandler(PendingPacketsProcedure, srv.PendingPackets, opts...))

	return newCORSHandler(cfg.AllowedOrigins, mux)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// requestIDMiddleware fills in a uuid request id when the caller sent none.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// zerologMiddleware logs HTTP requests using zerolog
func zerologMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		Logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// zerologRecoverer recovers from panics and logs with zerolog
func zerologRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				Logger.Error().
					Interface("panic", rvr).
					Str("path", r.URL.Path).
					Msg("Recovered from panic")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func newCORSHandler(allowedOrigins []string, next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	// wildcard origins cannot be combined with credentials
	allowCredentials := !(len(allowedOrigins) == 1 && allowedOrigins[0] == "*")

	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Connect-Accept-Encoding",
			"Connect-Content-Encoding",
			"Connect-Protocol-Version",
			"Connect-Timeout-Ms",
			"Content-Encoding",
			"Content-Type",
			"X-Request-Id",
		},
		ExposedHeaders: []string{
			"Content-Encoding",
			"Connect-Content-Encoding",
			"X-Request-Id",
		},
		AllowCredentials: allowCredentials,
		MaxAge:           int(2 * time.Hour / time.Second),
	}).Handler(next)
}

// loggingInterceptor logs connect requests
func loggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			event := Logger.Info()
			if err != nil {
				event = Logger.Warn().Err(err).Str("code", connect.CodeOf(err).String())
			}
			event.
				Str("procedure", req.Spec().Procedure).
				Str("protocol", req.Peer().Protocol).
				Dur("duration", time.Since(start)).
				Msg("rpc")
			return resp, err
		}
	}
}

// recoverHandler handles panics in RPC handlers
func recoverHandler(ctx context.Context, spec connect.Spec, header http.Header, p any) error {
	Logger.Error().
		Interface("panic", p).
		Str("procedure", spec.Procedure).
		Msg("Panic in RPC handler")
	return connect.NewError(connect.CodeInternal, nil)
}

// Handler exposes the full handler chain, without h2c.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	Logger.Info().
		Str("address", s.config.Address).
		Str("service", "/"+ServiceName+"/*").
		Bool("metrics", s.config.EnableMetrics).
		Msg("Spectra entry point RPC server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	Logger.Info().Msg("Shutting down RPC server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		Logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}
	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			Logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
			return err
		}
	}
	Logger.Info().Msg("Server shutdown complete")
	return nil
}
