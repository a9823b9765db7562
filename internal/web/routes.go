package web

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/constants"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	guardiansHandler := handlers.NewGuardiansHandler(s.services.Registrar, s.services.Students, s.log)
	pickupsHandler := handlers.NewPickupsHandler(s.services.Verifier, s.log)
	studentsHandler := handlers.NewStudentsHandler(s.services.Students, s.log)
	logsHandler := handlers.NewPickupLogsHandler(s.services.Students, s.log)
	healthHandler := handlers.NewHealthHandler(s.services.Store, s.log)

	s.router.Get("/", handlers.Index)
	s.router.Get("/health", healthHandler.Check)

	// Uploads, with headroom over the file limit for the other form fields
	s.router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.RequestSize(constants.MaxUploadSize + 1<<20))
		r.Post("/register_guardian", guardiansHandler.Register)
		r.Post("/verify_pickup", pickupsHandler.Verify)
	})

	// Registry
	s.router.Post("/add_student", studentsHandler.Add)
	s.router.Get("/students", studentsHandler.List)
	s.router.Get("/guardians", guardiansHandler.List)

	// Audit trail
	s.router.Get("/pickup_logs", logsHandler.List)
	s.router.Get("/pickup_logs/export", logsHandler.Export)
}
