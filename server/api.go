package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Frame submission gets a per-IP limit, so that a runaway client can't starve the other feeds
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/health", s.httpHealth)

	ratelimited("POST", "/api/feed/:feed/analyze", s.httpFeedAnalyze, 100, time.Second)
	ratelimited("POST", "/api/feed/:feed/frame", s.httpFeedFrame, 100, time.Second)
	handle("DELETE", "/api/feed/:feed", s.httpFeedDelete)
	handle("GET", "/api/feed/:feed/ws", s.httpFeedStream)

	handle("GET", "/api/zones", s.httpZonesList)
	handle("POST", "/api/zones", s.httpZonesCreate)
	handle("PATCH", "/api/zones/:id", s.httpZonesUpdate)
	handle("DELETE", "/api/zones/:id", s.httpZonesDelete)

	handle("GET", "/api/door/areas", s.httpDoorAreasGet)
	handle("PUT", "/api/door/areas", s.httpDoorAreasSet)
	handle("GET", "/api/doors", s.httpPlanDoorsList)
	handle("POST", "/api/doors", s.httpPlanDoorsCreate)
	handle("DELETE", "/api/doors/:id", s.httpPlanDoorsDelete)

	handle("GET", "/api/alerts", s.httpAlertsList)
	handle("DELETE", "/api/alerts", s.httpAlertsClear)
	handle("POST", "/api/alerts/:id/ack", s.httpAlertsAck)

	router.Handler("GET", "/metrics", promhttp.HandlerFor(s.Monitor.Registry, promhttp.HandlerOpts{}))

	s.httpRouter = router
}

// ServeHTTP lets the server be used directly as an http.Handler, which is handy for tests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpRouter.ServeHTTP(w, r)
}

func (s *Server) httpHealth(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type health struct {
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Feeds         []int64 `json:"feeds"`
	}
	www.SendJSON(w, &health{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Feeds:         s.Monitor.Feeds(),
	})
}
