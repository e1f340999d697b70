package server

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/observability"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Gateway serves the ledger service as HTTP/JSON. Routes call the service
// in-process, errors are rendered the way grpc-gateway renders gRPC status.
type Gateway struct {
	mux       *runtime.ServeMux
	svc       *LedgerService
	metrics   *observability.Metrics
	marshaler runtime.Marshaler
}

// NewGateway registers every command and query route on a runtime.ServeMux.
func NewGateway(svc *LedgerService, metrics *observability.Metrics) (*Gateway, error) {
	g := &Gateway{
		mux:       runtime.NewServeMux(),
		svc:       svc,
		metrics:   metrics,
		marshaler: &runtime.JSONPb{},
	}

	if err := g.mux.HandlePath(http.MethodPost, "/v1/commands/{type}", g.submit); err != nil {
		return nil, fmt.Errorf("register commands route: %w", err)
	}
	for _, m := range queryMethods {
		if err := g.mux.HandlePath(m.verb, m.path, g.query(m)); err != nil {
			return nil, fmt.Errorf("register %s: %w", m.name, err)
		}
	}
	return g, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// POST /v1/commands/{type}
func (g *Gateway) submit(w http.ResponseWriter, r *http.Request, params map[string]string) {
	start := time.Now()
	typeName := params["type"]

	var wire command.Wire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		err = statusFromError(fmt.Errorf("%w: %v", fault.ErrPayloadParseFail, err))
		g.fail(w, r, "http:"+typeName, start, err)
		return
	}

	resp, err := g.svc.Submit(r.Context(), typeName, &wire)
	if err != nil {
		g.fail(w, r, "http:"+typeName, start, err)
		return
	}
	observe(g.metrics, "http:"+typeName, start, nil)
	writeResponse(w, http.StatusOK, resp)
}

func (g *Gateway) query(m queryMethod) runtime.HandlerFunc {
	endpoint := "http:" + m.name
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		req, err := queryRequest(r, params)
		if err != nil {
			g.fail(w, r, endpoint, start, err)
			return
		}
		resp, err := m.handle(g.svc, r.Context(), req)
		if err != nil {
			g.fail(w, r, endpoint, start, err)
			return
		}
		observe(g.metrics, endpoint, start, nil)
		writeResponse(w, http.StatusOK, resp)
	}
}

func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, endpoint string, start time.Time, err error) {
	observe(g.metrics, endpoint, start, err)
	runtime.HTTPError(r.Context(), g.mux, g.marshaler, w, r, err)
}

// queryRequest fills a QueryRequest from path parameters and the limit and
// before query-string values.
func queryRequest(r *http.Request, params map[string]string) (*QueryRequest, error) {
	req := &QueryRequest{
		Account: params["account"],
		Book:    params["book"],
	}

	var err error
	if v, ok := params["asset_id"]; ok {
		if req.AssetID, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid asset_id %q", v)
		}
	}
	if v, ok := params["sequence"]; ok {
		if req.Sequence, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid sequence %q", v)
		}
	}

	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid limit %q", v)
		}
	}
	if v := q.Get("before"); v != "" {
		if req.Before, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid before %q", v)
		}
	}
	return req, nil
}

func writeResponse(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
