package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/tenancy/xtenancy"
)

const maxBodyBytes = 1 << 20

var errUnknownKind = errors.New("unknown animal kind")

// birds 不区分租户的静态数据。
var birds = []string{"sparrow", "magpie", "crane"}

type router struct {
	tenancy *xtenancy.Tenancy
	logger  xlog.Logger
}

// newRouter 组装 HTTP 路由。/healthz、/birds、/admin 不解析租户。
func newRouter(tn *xtenancy.Tenancy, logger xlog.Logger) http.Handler {
	rt := &router{tenancy: tn, logger: xlog.OrDiscard(logger)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /birds", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, birds)
	})
	mux.HandleFunc("GET /admin/pool", rt.poolStats)

	mux.HandleFunc("GET /cats", rt.list(modelCat))
	mux.HandleFunc("POST /cats", rt.create(modelCat))
	mux.HandleFunc("GET /dogs", rt.list(modelDog))
	mux.HandleFunc("POST /dogs", rt.create(modelDog))
	mux.HandleFunc("GET /animals", rt.list(modelAnimal))
	mux.HandleFunc("GET /animals/{kind}", rt.listKind)
	mux.HandleFunc("POST /animals/{kind}", rt.createKind)

	mw := tn.HTTPMiddleware(xtenancy.WithSkipper(xtenancy.SkipPaths("/healthz", "/birds", "/admin")))
	return mw(mux)
}

func (rt *router) list(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := xtenancy.ModelFrom(r.Context(), model)
		if err != nil {
			rt.fail(w, r, err)
			return
		}
		docs := []bson.M{}
		if err := m.Find(r.Context(), bson.D{}, &docs); err != nil {
			rt.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func (rt *router) create(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := xtenancy.ModelFrom(r.Context(), model)
		if err != nil {
			rt.fail(w, r, err)
			return
		}
		var doc map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&doc); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		id, err := m.InsertOne(r.Context(), doc)
		if err != nil {
			rt.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
	}
}

func (rt *router) listKind(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if !slices.Contains(animalKinds, kind) {
		http.Error(w, errUnknownKind.Error(), http.StatusNotFound)
		return
	}
	rt.list(kind)(w, r)
}

func (rt *router) createKind(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if !slices.Contains(animalKinds, kind) {
		http.Error(w, errUnknownKind.Error(), http.StatusNotFound)
		return
	}
	rt.create(kind)(w, r)
}

func (rt *router) poolStats(w http.ResponseWriter, _ *http.Request) {
	pool := rt.tenancy.Pool()
	st := pool.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"tenants":     pool.Tenants(),
		"connections": st.Connections,
		"hits":        st.Hits,
		"misses":      st.Misses,
		"failures":    st.Failures,
		"models":      rt.tenancy.Registry().Len(),
	})
}

func (rt *router) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := xtenancy.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		rt.logger.Error(r.Context(), "request failed", xlog.Err(err), slog.Int("status", code))
	}
	xtenancy.WriteError(w, r, err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
