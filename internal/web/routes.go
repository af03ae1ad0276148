package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/lumeo/lumeo/internal/organizer"
	"github.com/lumeo/lumeo/internal/web/handlers"
)

func (s *Server) setupRoutes(org *organizer.Organizer) {
	photosHandler := handlers.NewPhotosHandler(s.store)
	facesHandler := handlers.NewFacesHandler(s.engine, s.store, s.config.Tuning.Search)
	clustersHandler := handlers.NewClustersHandler(s.engine)
	processHandler := handlers.NewProcessHandler(s.engine)
	organizeHandler := handlers.NewOrganizeHandler(org, s.config.Organizer.DestRoot)
	statsHandler := handlers.NewStatsHandler(s.store, s.engine)
	resetHandler := handlers.NewResetHandler(s.engine)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/photos", photosHandler.Register)
		r.Get("/photos/{id}", photosHandler.Get)
		r.Post("/photos/{id}/status", photosHandler.SetStatus)

		r.Post("/faces", facesHandler.Ingest)
		r.Post("/faces/similar", facesHandler.Similar)

		r.Post("/process", processHandler.Run)

		r.Get("/clusters", clustersHandler.List)
		r.Get("/clusters/{id}/photos", clustersHandler.Photos)
		r.Put("/clusters/{id}", clustersHandler.Rename)

		r.Post("/organize", organizeHandler.Run)

		r.Get("/stats", statsHandler.Get)
		r.Post("/reset", resetHandler.Run)
	})
}
