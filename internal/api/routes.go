package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"spreadmonitor/internal/api/handlers"
	"spreadmonitor/internal/api/middleware"
	"spreadmonitor/internal/wsbroadcast"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies bundles everything SetupRoutes needs to wire the
// aggregator's query surface, the WebSocket push feed, and the
// debug/metrics endpoints onto one router.
type Dependencies struct {
	Aggregator *handlers.AggregatorHandler
	Auth       *handlers.AuthHandler
	Hub        *wsbroadcast.Hub
	JWTSecret  string
}

// SetupRoutes builds the full HTTP router:
//
// /api/v1/
//
//	├── GET  /pairs/top    - ranked top(n) spread snapshot
//	├── GET  /clocks       - per-venue clock-sync state
//	├── GET  /health       - aggregator lifecycle, pair and worker counts
//	├── POST /auth/token   - issue a JWT for the control endpoints
//	└── POST /control/stop - JWT-protected: stop the aggregator
//
// /ws/stream            - WebSocket push of periodic top(n) snapshots
// /healthz              - unauthenticated liveness probe
// /metrics              - Prometheus exposition
// /debug/pprof/*        - profiling endpoints
// /debug/runtime        - lightweight runtime stats, no fmt/encoding-json
//
// Middleware order: Recovery, Logging, CORS for every route; JWT auth
// only wraps the mutating control endpoint.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	if deps != nil && deps.Aggregator != nil {
		api := router.PathPrefix("/api/v1").Subrouter()

		api.HandleFunc("/pairs/top", deps.Aggregator.GetTopPairs).Methods(http.MethodGet)
		api.HandleFunc("/clocks", deps.Aggregator.GetClocks).Methods(http.MethodGet)
		api.HandleFunc("/health", deps.Aggregator.GetHealth).Methods(http.MethodGet)

		control := api.PathPrefix("/control").Subrouter()
		control.Use(middleware.NewAuth(deps.JWTSecret))
		control.HandleFunc("/stop", deps.Aggregator.PostStop).Methods(http.MethodPost)

		if deps.Auth != nil {
			api.HandleFunc("/auth/token", deps.Auth.PostToken).Methods(http.MethodPost)
		}
	}

	if deps != nil && deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			wsbroadcast.ServeWS(deps.Hub, w, r)
		}).Methods(http.MethodGet)
	}

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.HandleFunc("/heap", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("heap").ServeHTTP(w, r)
	})
	debug.HandleFunc("/goroutine", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("goroutine").ServeHTTP(w, r)
	})
	debug.HandleFunc("/block", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("block").ServeHTTP(w, r)
	})
	debug.HandleFunc("/threadcreate", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("threadcreate").ServeHTTP(w, r)
	})
	debug.HandleFunc("/mutex", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("mutex").ServeHTTP(w, r)
	})
	debug.HandleFunc("/allocs", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("allocs").ServeHTTP(w, r)
	})

	router.HandleFunc("/debug/runtime", func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{`))
		w.Write([]byte(`"goroutines":` + itoa(runtime.NumGoroutine()) + `,`))
		w.Write([]byte(`"heap_alloc_mb":` + ftoa(float64(m.HeapAlloc)/1024/1024) + `,`))
		w.Write([]byte(`"heap_sys_mb":` + ftoa(float64(m.HeapSys)/1024/1024) + `,`))
		w.Write([]byte(`"num_gc":` + itoa(int(m.NumGC)) + `,`))
		w.Write([]byte(`"gc_pause_total_ms":` + ftoa(float64(m.PauseTotalNs)/1e6)))
		w.Write([]byte(`}`))
	}).Methods(http.MethodGet)

	return router
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	pos := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}

func ftoa(f float64) string {
	i := int(f * 100)
	whole := i / 100
	frac := i % 100
	if frac < 0 {
		frac = -frac
	}
	fracStr := itoa(frac)
	if len(fracStr) == 1 {
		fracStr = "0" + fracStr
	}
	return itoa(whole) + "." + fracStr
}
