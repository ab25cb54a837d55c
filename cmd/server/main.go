package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lawmcp/server/internal/authserver"
	"lawmcp/server/internal/config"
	"lawmcp/server/internal/jsonrpc"
	"lawmcp/server/internal/lawapi"
	"lawmcp/server/internal/mcp"
	"lawmcp/server/internal/middleware"
	"lawmcp/server/internal/observability"
	"lawmcp/server/internal/tools"
	"lawmcp/server/internal/transport"
)

func main() {
	// Initialize observability (Loki)
	observability.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	lawClient := lawapi.NewClient()
	registry := tools.NewRegistry(tools.LawTools(lawClient)...)
	handler := mcp.NewHandler(registry)

	router := jsonrpc.NewRouter()
	handler.RegisterMethods(router)

	switch cfg.Transport {
	case config.TransportStdio:
		runStdio(router)
	case config.TransportHTTP:
		runStreamable(router, cfg)
	case config.TransportSSE:
		runSSE(router, cfg)
	}
}

func runStdio(router *jsonrpc.Router) {
	log.SetOutput(os.Stderr)
	log.Printf("Starting stdio transport")
	if err := transport.NewStdio(router).Run(context.Background()); err != nil {
		log.Fatalf("stdio transport failed: %v", err)
	}
}

func runStreamable(router *jsonrpc.Router, cfg *config.Config) {
	var verifier middleware.TokenVerifier = middleware.StaticKey(cfg.APIKey)
	var oauth transport.OAuthProvider
	resourceMetadata := ""

	if cfg.OAuthEnabled() {
		as := authserver.New(cfg.APIKey, cfg.PublicBaseURL)
		oauth = as
		verifier = as.Tokens()
		resourceMetadata = as.ResourceMetadataURL()
		log.Printf("OAuth authorization server enabled (issuer: %s)", cfg.PublicBaseURL)
	}

	auth := middleware.NewAuthenticator(verifier, resourceMetadata)
	server := transport.NewStreamServer(router, auth, oauth, cfg.CORSOrigin)

	serveHTTP(server.Handler(), cfg.Port, "streamable HTTP")
}

func runSSE(router *jsonrpc.Router, cfg *config.Config) {
	auth := middleware.NewAuthenticator(middleware.StaticKey(cfg.APIKey), "")
	server := transport.NewEventServer(router, auth, cfg.CORSOrigin, cfg.Heartbeat())

	serveHTTP(server.Handler(), cfg.Port, "legacy SSE")
}

func serveHTTP(handler http.Handler, port int, name string) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting %s transport on port %d", name, port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %s, shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Printf("Server stopped")
}
