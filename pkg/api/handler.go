// Package api exposes the flow editor and runner over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SethBurkart123/covalt/pkg/executor"
	"github.com/SethBurkart123/covalt/pkg/flow"
	"github.com/SethBurkart123/covalt/pkg/graphdb"
	"github.com/SethBurkart123/covalt/pkg/metrics"
)

// Handler holds all HTTP handler dependencies. Node definitions are read
// through the store, so catalog hot-reloads apply without rewiring.
type Handler struct {
	store  *flow.Store
	engine *executor.Engine
	db     *graphdb.DB
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(store *flow.Store, engine *executor.Engine, db *graphdb.DB, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{store: store, engine: engine, db: db, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/definitions", h.listDefinitions)

	h.mux.HandleFunc("GET /v1/graph", h.getGraph)
	h.mux.HandleFunc("PUT /v1/graph", h.putGraph)
	h.mux.HandleFunc("POST /v1/graph/nodes", h.addNode)
	h.mux.HandleFunc("DELETE /v1/graph/nodes/{id}", h.removeNode)
	h.mux.HandleFunc("POST /v1/graph/connect", h.connect)
	h.mux.HandleFunc("POST /v1/graph/validate-connection", h.validateConnection)
	h.mux.HandleFunc("DELETE /v1/graph/edges/{id}", h.disconnect)
	h.mux.HandleFunc("POST /v1/graph/undo", h.undo)
	h.mux.HandleFunc("POST /v1/graph/redo", h.redo)

	h.mux.HandleFunc("GET /v1/graphs", h.listGraphs)
	h.mux.HandleFunc("PUT /v1/graphs/{name}", h.saveGraph)
	h.mux.HandleFunc("GET /v1/graphs/{name}", h.loadGraph)
	h.mux.HandleFunc("DELETE /v1/graphs/{name}", h.deleteGraph)

	h.mux.HandleFunc("POST /v1/plan", h.plan)
	h.mux.HandleFunc("POST /v1/run", h.run)

	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h.logging(h.mux)
}

// logging wraps the mux with request logging.
func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Info("http request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// GET /v1/definitions — node palette plus the socket types the canvas
// can draw.
func (h *Handler) listDefinitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"definitions": h.store.Definitions().List(),
		"sockets":     socketPalette(),
	})
}

// socketInfo is one renderable socket type.
type socketInfo struct {
	Type  flow.SocketType `json:"type"`
	Color string          `json:"color"`
	Shape string          `json:"shape"`
}

func socketPalette() []socketInfo {
	types := flow.SocketTypes()
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	out := make([]socketInfo, 0, len(types))
	for _, t := range types {
		style := flow.SocketStyleFor(t, nil)
		out = append(out, socketInfo{Type: t, Color: style.Color, Shape: style.Shape})
	}
	return out
}

// GET /v1/graph — the live editor graph.
func (h *Handler) getGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Graph())
}

// PUT /v1/graph — replace the live graph wholesale.
func (h *Handler) putGraph(w http.ResponseWriter, r *http.Request) {
	var g flow.Graph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if err := h.store.LoadGraph(g); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	metrics.GraphMutations.WithLabelValues("load").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": len(h.store.Nodes()),
		"edges": len(h.store.Edges()),
	})
}

// POST /v1/graph/nodes — add a node instance.
func (h *Handler) addNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string        `json:"type"`
		Position flow.Position `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	node, err := h.store.AddNode(req.Type, req.Position)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	metrics.GraphMutations.WithLabelValues("add_node").Inc()
	writeJSON(w, http.StatusCreated, node)
}

// DELETE /v1/graph/nodes/{id} — remove a node and its edges.
func (h *Handler) removeNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.store.RemoveNode(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("node %q not found", id))
		return
	}
	metrics.GraphMutations.WithLabelValues("remove_node").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

// POST /v1/graph/connect — create an edge.
func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var c flow.Connection
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	edge, ok := h.store.Connect(c)
	if !ok {
		metrics.ConnectionsRejected.Inc()
		writeError(w, http.StatusUnprocessableEntity, "connection rejected")
		return
	}
	metrics.GraphMutations.WithLabelValues("connect").Inc()
	writeJSON(w, http.StatusCreated, edge)
}

// POST /v1/graph/validate-connection — dry-run connection check.
func (h *Handler) validateConnection(w http.ResponseWriter, r *http.Request) {
	var c flow.Connection
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": h.store.IsValidConnection(c)})
}

// DELETE /v1/graph/edges/{id} — remove an edge.
func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.store.Disconnect(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("edge %q not found", id))
		return
	}
	metrics.GraphMutations.WithLabelValues("disconnect").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

// POST /v1/graph/undo
func (h *Handler) undo(w http.ResponseWriter, r *http.Request) {
	ok := h.store.Undo()
	if ok {
		metrics.HistoryOps.WithLabelValues("undo").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": ok})
}

// POST /v1/graph/redo
func (h *Handler) redo(w http.ResponseWriter, r *http.Request) {
	ok := h.store.Redo()
	if ok {
		metrics.HistoryOps.WithLabelValues("redo").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": ok})
}

// GET /v1/graphs — saved graph listing.
func (h *Handler) listGraphs(w http.ResponseWriter, r *http.Request) {
	infos, err := h.db.ListGraphs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"graphs": infos})
}

// PUT /v1/graphs/{name} — persist the live graph under a name.
func (h *Handler) saveGraph(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.db.SaveGraph(name, h.store.Graph()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": name})
}

// GET /v1/graphs/{name} — load a saved graph into the editor.
func (h *Handler) loadGraph(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	g, err := h.db.LoadGraph(name)
	if errors.Is(err, graphdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.LoadGraph(g); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	metrics.GraphMutations.WithLabelValues("load").Inc()
	writeJSON(w, http.StatusOK, g)
}

// DELETE /v1/graphs/{name}
func (h *Handler) deleteGraph(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.db.DeleteGraph(name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": name})
}

// planRequest shapes POST /v1/plan and the planning half of POST /v1/run.
type planRequest struct {
	GraphName     string   `json:"graphName"`
	Target        string   `json:"target"`
	FiringTrigger string   `json:"firingTrigger"`
	ChangedNodes  []string `json:"changedNodes"`
	StopAt        []string `json:"stopAt"`
}

// buildPlan computes a run plan for the live graph against the named
// graph's output cache.
func (h *Handler) buildPlan(req planRequest) (flow.RunPlan, map[string]executor.Outputs, error) {
	cached := map[string]executor.Outputs{}
	if req.GraphName != "" {
		var err error
		cached, err = h.db.CachedOutputs(req.GraphName)
		if err != nil {
			return flow.RunPlan{}, nil, err
		}
	}
	cachedIDs := make([]string, 0, len(cached))
	for id := range cached {
		cachedIDs = append(cachedIDs, id)
	}
	stopAt := make(map[string]bool, len(req.StopAt))
	for _, id := range req.StopAt {
		stopAt[id] = true
	}

	plan := flow.PlanRun(flow.PlanRequest{
		Target:          req.Target,
		Nodes:           h.store.Nodes(),
		Edges:           h.store.Edges(),
		StopAt:          stopAt,
		ChangedNodes:    req.ChangedNodes,
		CachedOutputIDs: cachedIDs,
		FiringTrigger:   req.FiringTrigger,
	}, h.store.Definitions())
	metrics.PlansBuilt.Inc()
	return plan, cached, nil
}

// POST /v1/plan — compute a plan without running.
func (h *Handler) plan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	plan, _, err := h.buildPlan(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// runRequest shapes POST /v1/run.
type runRequest struct {
	planRequest
	ChatID          string `json:"chatId"`
	UserMessage     string `json:"userMessage"`
	ContinueOnError bool   `json:"continueOnError"`
}

// POST /v1/run — execute the live graph, reusing cached outputs when a
// target is given, and persist the results under graphName.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	opts := executor.RunOptions{
		ChatID:          req.ChatID,
		UserMessage:     req.UserMessage,
		ContinueOnError: req.ContinueOnError,
		OnEvent:         observeRunEvent,
	}
	if req.Target != "" {
		plan, cached, err := h.buildPlan(req.planRequest)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		opts.Plan = &plan
		opts.Cached = cached
	}

	start := time.Now()
	res, err := h.engine.Run(r.Context(), h.store.Graph(), opts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	metrics.RunDuration.Observe(float64(time.Since(start).Milliseconds()))

	if req.GraphName != "" {
		if err := h.db.SaveRunResult(req.GraphName, req.ChatID, res); err != nil {
			h.logger.Error("persisting run result", "run", res.RunID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// observeRunEvent maps run events onto counters.
func observeRunEvent(ev executor.Event) {
	switch ev.Type {
	case executor.EventCompleted:
		metrics.NodesExecuted.WithLabelValues(ev.NodeType, "ok").Inc()
	case executor.EventError:
		metrics.NodesExecuted.WithLabelValues(ev.NodeType, "error").Inc()
	case executor.EventCached:
		metrics.CacheReused.Inc()
	}
}

// GET /healthz — liveness probe.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
