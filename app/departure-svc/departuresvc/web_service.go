package departuresvc

import (
	"context"
	"encoding/json"
	"fmt"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/business/departures"
	"github.com/OpenTransitTools/nextdeparture/business/metrics"
	"github.com/OpenTransitTools/nextdeparture/foundation/clock"
)

// defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

// ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

// departureHandlers answers departure, alert, service hour and route requests from the Engine
type departureHandlers struct {
	log    *logger.Logger
	engine *departures.Engine
	clock  clock.Clock
}

// DeparturesResponse is the json document returned for departure requests
type DeparturesResponse struct {
	StopId      string           `json:"stop_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Departures  []gtfs.Departure `json:"departures"`
}

// AlertsResponse is the json document returned for alert requests
type AlertsResponse struct {
	RouteId string       `json:"route_id"`
	Alerts  []gtfs.Alert `json:"alerts"`
}

// ServiceHoursResponse is the json document returned for service hour requests
type ServiceHoursResponse struct {
	At     time.Time `json:"at"`
	Within bool      `json:"within"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// departures serves /departures?stop=&at=&direction=
func (d *departureHandlers) departures(w http.ResponseWriter, r *http.Request) {
	from, err := d.requestTime(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var direction *int
	if value := r.FormValue("direction"); len(value) > 0 {
		directionId, err := strconv.Atoi(value)
		if err != nil || (directionId != 0 && directionId != 1) {
			http.Error(w, fmt.Sprintf("direction must be 0 or 1, got %q", value), http.StatusBadRequest)
			return
		}
		direction = &directionId
	}
	stopId := r.FormValue("stop")
	if len(stopId) == 0 {
		stopId = d.engine.StopId()
	}
	d.writeJSON(w, DeparturesResponse{
		StopId:      stopId,
		GeneratedAt: d.clock.Now(),
		Departures:  d.engine.GetDepartures(r.Context(), stopId, from, direction),
	})
}

// alerts serves /alerts?route=, an empty route uses the subject route
func (d *departureHandlers) alerts(w http.ResponseWriter, r *http.Request) {
	routeId := r.FormValue("route")
	relevant := make([]gtfs.Alert, 0)
	for _, alert := range d.engine.GetServiceAlerts(r.Context()) {
		if d.engine.AlertRelevantTo(alert, routeId) {
			relevant = append(relevant, alert)
		}
	}
	d.writeJSON(w, AlertsResponse{RouteId: routeId, Alerts: relevant})
}

// serviceHours serves /service-hours?at=
func (d *departureHandlers) serviceHours(w http.ResponseWriter, r *http.Request) {
	at, err := d.requestTime(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, end := d.engine.ServiceHours(at)
	d.writeJSON(w, ServiceHoursResponse{
		At:     at,
		Within: d.engine.IsWithinServiceHours(at),
		Start:  start,
		End:    end,
	})
}

// routeInfo serves /routes/{routeId}
func (d *departureHandlers) routeInfo(w http.ResponseWriter, r *http.Request) {
	routeId := mux.Vars(r)["routeId"]
	info, found := d.engine.RouteInfo(routeId)
	if !found {
		http.Error(w, fmt.Sprintf("route %q not found", routeId), http.StatusNotFound)
		return
	}
	d.writeJSON(w, info)
}

// requestTime reads the "at" parameter as RFC3339, the current time when absent
func (d *departureHandlers) requestTime(r *http.Request) (time.Time, error) {
	value := r.FormValue("at")
	if len(value) == 0 {
		return d.clock.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse at %q as RFC3339", value)
	}
	return at, nil
}

func (d *departureHandlers) writeJSON(w http.ResponseWriter, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		d.log.Printf("Error marshaling response to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(jsonData); err != nil {
		d.log.Printf("Error writing json response: %s", err)
	}
}

// metricsMiddleware records request counts and latency by route template
func metricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := "unmatched"
			if route := mux.CurrentRoute(r); route != nil {
				if template, err := route.GetPathTemplate(); err == nil {
					path = template
				}
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// metricsResponseWriter captures the status code written by a handler
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// makeRouter builds the routes of the departure service
func makeRouter(log *logger.Logger, engine *departures.Engine, m *metrics.Metrics, c clock.Clock) *mux.Router {
	handlers := &departureHandlers{log: log, engine: engine, clock: c}

	r := mux.NewRouter()
	r.Use(metricsMiddleware(m))
	r.Handle("/", &defaultHttpHandler{})
	r.HandleFunc("/departures", handlers.departures).Methods(http.MethodGet)
	r.HandleFunc("/alerts", handlers.alerts).Methods(http.MethodGet)
	r.HandleFunc("/service-hours", handlers.serviceHours).Methods(http.MethodGet)
	r.HandleFunc("/routes/{routeId}", handlers.routeInfo).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// createServer creates configured http.Server for responding to departure requests
func createServer(log *logger.Logger,
	engine *departures.Engine,
	m *metrics.Metrics,
	httpPort int) *http.Server {
	return &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      makeRouter(log, engine, m, clock.RealClock{}),
	}
}

// runWebService starts up the departure web service, and terminates on shutdown signal
func runWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	engine *departures.Engine,
	m *metrics.Metrics,
	httpPort int,
	shutdownSignal chan bool,
) {
	defer wg.Done()
	srv := createServer(log, engine, m, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()

	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
