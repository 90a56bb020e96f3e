package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/domain"
	"github.com/cie10-predict-server/internal/middleware"
)

// Predictor runs the two-stage cause-of-death ranking.
type Predictor interface {
	PredictCategories(attrs domain.PatientAttributes) ([]domain.RankedPrediction, error)
	PredictCauses(ctx context.Context, category string, attrs domain.PatientAttributes) ([]domain.RankedPrediction, error)
}

// DescriptionEnricher attaches description text to ranked predictions.
type DescriptionEnricher interface {
	EnrichTopLevel(preds []domain.RankedPrediction) []domain.EnrichedPrediction
	EnrichCategory(ctx context.Context, preds []domain.RankedPrediction) []domain.EnrichedPrediction
}

// Server represents the HTTP server
type Server struct {
	config    *domain.Config
	predictor Predictor
	enricher  DescriptionEnricher
	refs      domain.ReferenceStore
	router    *gin.Engine
	server    *http.Server
	log       *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, predictor Predictor, enricher DescriptionEnricher, refs domain.ReferenceStore, logger *logrus.Logger) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.CorrelationID())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	server := &Server{
		config:    cfg,
		predictor: predictor,
		enricher:  enricher,
		refs:      refs,
		router:    router,
		log:       logger,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.log.WithField("addr", addr).Info("HTTP server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Endpoints consumed by the registration front-end
	s.router.POST("/predict", s.handlePredict)
	s.router.POST("/predict_causas", s.handlePredictCauses)

	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		// The front-end reaches the prediction endpoints through its
		// /api proxy prefix, so both spellings are served.
		api.POST("/predict", s.handlePredict)
		api.POST("/predict_causas", s.handlePredictCauses)

		api.GET("/departamentos", s.handleDepartments)
		api.GET("/municipios/:departamentoID", s.handleMunicipalities)
		api.GET("/categorias", s.handleCategories)
	}
}
