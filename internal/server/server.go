package server

import (
	"net/http"

	"github.com/Salon-Boss/malia-pro-access/internal/engine"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/Salon-Boss/malia-pro-access/internal/infra/auth"
	"github.com/Salon-Boss/malia-pro-access/internal/server/handler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Server struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Проверка RS256 токенов для управляющего периметра
	authValidator auth.TokenValidator

	// Лимитер и метрики для публичного контура решений
	limiter *engine.SlidingWindow
	metrics *engine.Metrics

	// Обработчики бизнес-доменов
	authHandler        *handler.AuthHandler        // /auth/token
	decisionHandler    *handler.DecisionHandler    // /v1/decisions, /v1/items, /v1/customers
	policyHandler      *handler.PolicyHandler      // /v1/policies/{tenant}
	overrideHandler    *handler.OverrideHandler    // /v1/policies/{tenant}/overrides
	analyticsHandler   *handler.AnalyticsHandler   // /v1/analytics
	eventsHandler      *handler.EventsHandler      // /v1/events/catalog
	collectionsHandler *handler.CollectionsHandler // /v1/catalog/collections
}

// New собирает HTTP-слой шлюза со всеми зависимостями
func New(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	limiter *engine.SlidingWindow,
	metrics *engine.Metrics,
	authH *handler.AuthHandler,
	decisionH *handler.DecisionHandler,
	policyH *handler.PolicyHandler,
	overrideH *handler.OverrideHandler,
	analyticsH *handler.AnalyticsHandler,
	eventsH *handler.EventsHandler,
	collectionsH *handler.CollectionsHandler,
) *Server {
	s := &Server{
		router:             chi.NewRouter(),
		logger:             logger.Named("gatekeeper-api"),
		cfg:                cfg,
		authValidator:      validator,
		limiter:            limiter,
		metrics:            metrics,
		authHandler:        authH,
		decisionHandler:    decisionH,
		policyHandler:      policyH,
		overrideHandler:    overrideH,
		analyticsHandler:   analyticsH,
		eventsHandler:      eventsH,
		collectionsHandler: collectionsH,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. КОНТУР РЕШЕНИЙ (публичный, но под лимитером) ---
	r.Group(func(r chi.Router) {
		r.Use(engine.RateLimitMiddleware(s.limiter, s.metrics))

		r.Post("/v1/decisions/cart", s.decisionHandler.DecideCart) // Пакетное решение по корзине
		r.Get("/v1/items/status", s.decisionHandler.ItemStatus)    // Требуемый уровень для товара
		r.Get("/v1/customers/tier", s.decisionHandler.CustomerTier)
	})

	// --- 4. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Управление политиками арендаторов
		r.Route("/v1/policies/{tenant}", func(r chi.Router) {
			r.Get("/", s.policyHandler.Get)    // Полный снимок политики
			r.Put("/", s.policyHandler.Update) // Атомарная замена уровней и правил

			// Точечные переопределения по товарам
			r.Route("/overrides", func(r chi.Router) {
				r.Get("/", s.overrideHandler.List)
				r.Put("/{itemID}", s.overrideHandler.Upsert)       // Идемпотентный upsert
				r.Delete("/{itemID}", s.overrideHandler.Delete)
			})
		})

		// Уведомления апстрима об изменении каталога
		r.Post("/v1/events/catalog", s.eventsHandler.Ingest)

		// Справочник коллекций апстрима (для редактора правил)
		r.Get("/v1/catalog/collections", s.collectionsHandler.List)

		// Срез отказов по кодам причин (Observability)
		r.Get("/v1/analytics", s.analyticsHandler.ReasonCounts)
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
