package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/web/handlers"
	"github.com/officeflow/attendance/internal/web/middleware"
)

func (s *Server) setupRoutes(deps Deps) {
	resolver := resolverFromConfig(s.config)
	gate := attendance.NewTrustGate()
	sequencer := attendance.NewSequencer()
	locker := attendance.NewIdentityLocker()

	// CandidateIndex is passed through an interface; a nil pointer must
	// stay a nil interface so handlers fall back to the full population.
	var indexer handlers.Indexer
	var candidates handlers.CandidateSource
	if deps.Index != nil {
		indexer = deps.Index
		candidates = deps.Index
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	authHandler := handlers.NewAuthHandler(deps.Directory, deps.Extractor, s.tokens, indexer)
	presenceHandler := handlers.NewPresenceHandler(
		deps.Directory, deps.Log, deps.Extractor,
		resolver, gate, sequencer, locker,
		s.config.PresencePolicy(),
	)
	attendanceHandler := handlers.NewAttendanceHandler(
		deps.Directory, deps.Log, deps.Extractor,
		resolver, gate, sequencer, locker, candidates,
		s.config.AttendancePolicy(),
	)
	faceHandler := handlers.NewFaceHandler(deps.Directory, deps.Extractor, gate, indexer, s.config.EnrollmentPolicy())
	logsHandler := handlers.NewLogsHandler(deps.Directory, deps.Log)

	s.router.Get("/metrics", promhttp.Handler().ServeHTTP)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// The face is the identity claim for smart attendance, so the
		// endpoint takes no session token. Re-enrollment authenticates
		// with the password inside the request body.
		r.Post("/attendance/smart", attendanceHandler.Record)
		r.Post("/face/update", faceHandler.Update)

		r.Get("/logs/{email}", logsHandler.List)
		r.Get("/analytics/{email}", logsHandler.Analytics)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.tokens))

			r.Get("/me", authHandler.Me)
			r.Post("/presence/verify", presenceHandler.Verify)
		})
	})
}
