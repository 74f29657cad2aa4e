package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
)

func SetupDataRouter(apiHandler *APIHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --> Apply Authentication Middleware to /data endpoint <--
	r.With(apiHandler.auth.APIKeyMiddleware).Post("/data", apiHandler.HandleDataIngest)
	r.Get("/health", apiHandler.HandleHealth)

	return r
}

// SetupUIRouter serves dashboards. Browser origins in allowedOrigins may
// call the API with credentials; with no origins, cross-origin calls are
// not allowed at all.
func SetupUIRouter(apiHandler *APIHandler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", apiHandler.ServeWebUI)
	r.Get("/health", apiHandler.HandleHealth)
	r.Get("/ws", apiHandler.HandleWebSocket)
	r.Handle("/metrics", apiHandler.metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", apiHandler.HandleState)
		r.Get("/forecast", apiHandler.HandleForecast)
		r.Get("/history/{metric}", apiHandler.HandleHistory)

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.auth.JudgeMiddleware)
			r.Post("/simulate", apiHandler.HandleSimulate)
			r.Post("/simulate/revert", apiHandler.HandleRevert)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/request-otp", apiHandler.HandleRequestOTP)
			r.Post("/verify-otp", apiHandler.HandleVerifyOTP)
			r.Post("/logout", apiHandler.HandleLogout)
			r.With(apiHandler.auth.SessionMiddleware).Get("/me", apiHandler.HandleMe)
		})
	})

	if len(allowedOrigins) == 0 {
		return r
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Judge-Key"}),
		handlers.AllowCredentials(),
	)
	return cors(r)
}
