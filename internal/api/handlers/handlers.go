// Package handlers implements the HTTP endpoints.
package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/analytics"
	"github.com/dvloznov/txengine/internal/api/middleware"
	"github.com/dvloznov/txengine/internal/categorise"
	"github.com/dvloznov/txengine/internal/jobs"
	"github.com/dvloznov/txengine/internal/pipeline"
	"github.com/dvloznov/txengine/internal/store"
)

// Handler bundles the engines and stores behind the HTTP surface.
type Handler struct {
	pipeline     *pipeline.Pipeline
	engine       *categorise.Engine
	analytics    *analytics.Service
	transactions store.TransactionStore
	recurring    store.RecurringStore
	publisher    jobs.Publisher
	jobStore     jobs.JobStore
	log          zerolog.Logger
}

// Deps lists the collaborators a Handler needs.
type Deps struct {
	Pipeline     *pipeline.Pipeline
	Engine       *categorise.Engine
	Analytics    *analytics.Service
	Transactions store.TransactionStore
	Recurring    store.RecurringStore
	Publisher    jobs.Publisher
	JobStore     jobs.JobStore
	Log          zerolog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{
		pipeline:     deps.Pipeline,
		engine:       deps.Engine,
		analytics:    deps.Analytics,
		transactions: deps.Transactions,
		recurring:    deps.Recurring,
		publisher:    deps.Publisher,
		jobStore:     deps.JobStore,
		log:          deps.Log,
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
