// Package metrics exposes Prometheus counters for pipeline activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts listing/landing pages fetched, by outcome.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igbot_pages_fetched_total",
		Help: "Pages fetched by the scraper, labeled by outcome.",
	}, []string{"outcome"})

	// FetchRetries counts retry attempts performed by the fetcher.
	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "igbot_fetch_retries_total",
		Help: "Retry attempts made by the page fetcher.",
	})

	// ReportsUpserted counts reports written to the store, by operation
	// (insert or update).
	ReportsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igbot_reports_upserted_total",
		Help: "Report rows inserted or updated.",
	}, []string{"op"})

	// LLMCalls counts LLM evaluations, by kind (filter/summary) and outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igbot_llm_calls_total",
		Help: "LLM calls, labeled by kind and outcome.",
	}, []string{"kind", "outcome"})

	// PostsPublished counts successful external posts.
	PostsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "igbot_posts_published_total",
		Help: "Posts successfully published.",
	})
)
