package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ehr-chatbot/internal/models"

	"go.uber.org/zap"
)

const healthProbeTimeout = 3 * time.Second

// HealthProbe checks one backend. A failing critical probe makes the service unavailable;
// other failures only mark it degraded.
type HealthProbe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// BasicHandler serves the banner and health endpoints
type BasicHandler struct {
	responder
	serviceName string
	version     string
	probes      []HealthProbe
}

// NewBasicHandler creates the banner and health handler
func NewBasicHandler(serviceName, version string, probes []HealthProbe, logger *zap.SugaredLogger) *BasicHandler {
	return &BasicHandler{
		responder:   newResponder(logger),
		serviceName: serviceName,
		version:     version,
		probes:      probes,
	}
}

// Home godoc
// @Summary Service banner
// @Description Returns the service name and version
// @Tags general
// @Produce json
// @Success 200 {object} models.BasicResponse
// @Router / [get]
func (h *BasicHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, models.BasicResponse{
		Message: h.serviceName + " " + h.version,
		Status:  http.StatusOK,
	})
}

// Health godoc
// @Summary Health check
// @Description Probes the knowledge base, session store and generative backend
// @Tags general
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /api/health [get]
func (h *BasicHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	type outcome struct {
		probe HealthProbe
		err   error
	}
	results := make([]outcome, len(h.probes))

	var wg sync.WaitGroup
	for i, probe := range h.probes {
		wg.Add(1)
		go func(i int, probe HealthProbe) {
			defer wg.Done()
			results[i] = outcome{probe: probe, err: probe.Check(ctx)}
		}(i, probe)
	}
	wg.Wait()

	resp := models.HealthResponse{Status: "ok", Backends: make(map[string]string, len(results))}
	status := http.StatusOK
	for _, res := range results {
		if res.err == nil {
			resp.Backends[res.probe.Name] = "ok"
			continue
		}
		resp.Backends[res.probe.Name] = res.err.Error()
		h.logger.Warnf("health probe %s failed: %v", res.probe.Name, res.err)
		if res.probe.Critical {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	}

	h.sendJSON(w, status, resp)
}
