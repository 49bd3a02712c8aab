// http-demo serves a small chi API with the tracing and metrics middleware
// wired, exposing prometheus metrics on /metrics.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"pulse-obs/pkg/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func main() {
	cfg := observability.DefaultConfig("http-demo")
	cfg.ServiceVersion = "0.1.0"
	cfg.MetricsExporter = "prometheus"
	cfg.Sampler = "ratio"
	cfg.SampleRatio = 1.0

	if err := observability.Init(cfg); err != nil {
		log.Fatalf("init observability: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.Shutdown(ctx)
	}()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))
	r.Use(observability.TracingMiddleware("http-demo"))
	r.Use(observability.MetricsMiddleware())

	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		observability.C(r.Context()).Info("order lookup",
			observability.String("order_id", id),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"` + id + `","status":"filled"}`))
	})
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	observability.L().Info("listening", observability.String("addr", ":8080"))
	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
