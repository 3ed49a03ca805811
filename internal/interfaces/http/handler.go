package http

import (
	"net/http"

	"main/internal/application/service/collector"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusReporter exposes the live state of one exchange pipeline.
type StatusReporter interface {
	Status() collector.Status
}

// Handler serves the operational endpoints: liveness, per-exchange collector
// status and the metrics scrape.
type Handler struct {
	router     *gin.Engine
	collectors []StatusReporter
}

func NewHandler(collectors []StatusReporter, registry *prometheus.Registry) *Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:     router,
		collectors: collectors,
	}
	router.GET("/healthz", h.healthz)
	router.GET("/status", h.status)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// status reports every collector. 503 when any feed is down so orchestrators
// can restart the process.
func (h *Handler) status(c *gin.Context) {
	statuses := make([]collector.Status, 0, len(h.collectors))
	allRunning := true
	for _, col := range h.collectors {
		st := col.Status()
		if !st.Running {
			allRunning = false
		}
		statuses = append(statuses, st)
	}
	code := http.StatusOK
	if !allRunning {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"collectors": statuses})
}
