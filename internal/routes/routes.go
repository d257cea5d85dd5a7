package routes

import (
	"net/http"

	"ehr-chatbot/internal/handlers"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handlers groups every HTTP handler the router serves
type Handlers struct {
	Basic   *handlers.BasicHandler
	Chat    *handlers.ChatHandler
	Metrics http.Handler // optional

	// SwaggerURL points the UI at doc.json, empty disables /swagger/
	SwaggerURL string
}

// RegisterRoutes sets up all application routes. auth wraps every /api route that
// needs an owner.
func RegisterRoutes(router *mux.Router, h *Handlers, auth func(http.Handler) http.Handler) {
	// Health and banner
	router.HandleFunc("/", h.Basic.Home).Methods(http.MethodGet)
	router.HandleFunc("/api/health", h.Basic.Health).Methods(http.MethodGet)

	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods(http.MethodGet)
	}

	if h.SwaggerURL != "" {
		router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
			httpSwagger.URL(h.SwaggerURL),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("none"),
			httpSwagger.DomID("swagger-ui"),
		))
	}

	// Conditions are public
	router.HandleFunc("/api/conditions", h.Chat.ListConditions).Methods(http.MethodGet)

	// Owner scoped chat API
	api := router.PathPrefix("/api").Subrouter()
	if auth != nil {
		api.Use(auth)
	}
	api.HandleFunc("/chat/start", h.Chat.StartSession).Methods(http.MethodPost)
	api.HandleFunc("/chat/query", h.Chat.Query).Methods(http.MethodPost)
	api.HandleFunc("/chat/history/{session_id}", h.Chat.History).Methods(http.MethodGet)
	api.HandleFunc("/chat/sessions", h.Chat.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/chat/educational-note", h.Chat.EducationalNote).Methods(http.MethodPost)
	api.HandleFunc("/chat/update-clinical-data", h.Chat.UpdateClinicalData).Methods(http.MethodPost)
	api.HandleFunc("/chat/session/{session_id}", h.Chat.DeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/stats/{session_id}", h.Chat.Stats).Methods(http.MethodGet)
}
