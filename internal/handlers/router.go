package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/config"
	"donorcrm/internal/middleware"
	"donorcrm/internal/store"
	"donorcrm/internal/websocket"
)

type Handler struct {
	db        Pinger
	cfg       config.Config
	operators OperatorStore
	audit     AuditStore
	service   IntegrityService
	hub       *websocket.Hub
	log       *logrus.Logger
}

func New(db Pinger, cfg config.Config, operators OperatorStore, audit AuditStore, service IntegrityService, hub *websocket.Hub, log *logrus.Logger) *Handler {
	return &Handler{
		db:        db,
		cfg:       cfg,
		operators: operators,
		audit:     audit,
		service:   service,
		hub:       hub,
		log:       log,
	}
}

func (h *Handler) allowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(h.cfg.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/integrity", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.With(middleware.RequireOperator(h.operators, store.RoleViewIntegrity)).Get("/reports/latest", h.LatestReport)
		r.With(middleware.RequireOperator(h.operators, store.RoleViewIntegrity)).Get("/corrections", h.ListCorrections)
		r.With(middleware.RequireOperator(h.operators, store.RoleRunIntegrity)).Post("/check", h.RunCheck)
	})
	router.With(
		middleware.Auth(h.cfg.JWTSecret),
		middleware.RequireOperator(h.operators, store.RoleManageRates),
	).Post("/exchange-rates", h.AddRate)
	router.With(
		middleware.AuthQuery(h.cfg.JWTSecret),
		middleware.RequireOperator(h.operators, store.RoleViewIntegrity),
	).Get("/ws/integrity", h.WSIntegrity)

	router.Get("/health", h.Health)
	return router
}
