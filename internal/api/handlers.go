package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cie10-predict-server/internal/domain"
)

// predictRequest mirrors the form fields the registration front-end sends.
type predictRequest struct {
	Age                   int    `json:"edad"`
	Gender                string `json:"genero" binding:"required"`
	PopulationGroup       string `json:"ppertenencia" binding:"required"`
	ReferralSource        string `json:"fuente" binding:"required"`
	ResidenceDepartment   string `json:"deptoresiden" binding:"required"`
	ResidenceMunicipality string `json:"muniresiden" binding:"required"`
}

// predictCausesRequest adds the diagnostic group selected from a
// previous /predict response.
type predictCausesRequest struct {
	predictRequest
	Category string `json:"categoria" binding:"required"`
}

func (r predictRequest) attributes() domain.PatientAttributes {
	return domain.PatientAttributes{
		Age:                   r.Age,
		Gender:                r.Gender,
		PopulationGroup:       r.PopulationGroup,
		ReferralSource:        r.ReferralSource,
		ResidenceDepartment:   r.ResidenceDepartment,
		ResidenceMunicipality: r.ResidenceMunicipality,
	}
}

// categoryPrediction is one /predict response entry.
type categoryPrediction struct {
	Categoria   string  `json:"categoria"`
	Prob        float64 `json:"prob"`
	Descripcion string  `json:"descripcion"`
}

// causePrediction is one /predict_causas response entry.
type causePrediction struct {
	Caufin      string  `json:"caufin"`
	Prob        float64 `json:"prob"`
	Descripcion string  `json:"descripcion"`
}

// handlePredict ranks the most likely CIE-10 diagnostic groups for a patient
func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    domain.ErrCodeInvalidInput,
		})
		return
	}

	ranked, err := s.predictor.PredictCategories(req.attributes())
	if err != nil {
		s.predictionError(c, err)
		return
	}

	enriched := s.enricher.EnrichTopLevel(ranked)
	predictions := make([]categoryPrediction, 0, len(enriched))
	for _, p := range enriched {
		predictions = append(predictions, categoryPrediction{
			Categoria:   p.Label,
			Prob:        p.Probability,
			Descripcion: p.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"predictions": predictions,
	})
}

// handlePredictCauses ranks the most likely cause codes within one group
func (s *Server) handlePredictCauses(c *gin.Context) {
	var req predictCausesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    domain.ErrCodeInvalidInput,
		})
		return
	}

	ranked, err := s.predictor.PredictCauses(c.Request.Context(), req.Category, req.attributes())
	if err != nil {
		var notFound *domain.CategoryModelNotFoundError
		var loadErr *domain.ArtifactLoadError
		switch {
		case errors.As(err, &notFound), errors.As(err, &loadErr):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   fmt.Sprintf("Modelo para categoría '%s' no encontrado", req.Category),
				"code":    domain.ErrCodeCategoryNotFound,
			})
		default:
			s.predictionError(c, err)
		}
		return
	}

	if len(ranked) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "No se encontraron resultados para la predicción",
			"code":    domain.ErrCodePredictionFailure,
		})
		return
	}

	enriched := s.enricher.EnrichCategory(c.Request.Context(), ranked)
	predictions := make([]causePrediction, 0, len(enriched))
	for _, p := range enriched {
		predictions = append(predictions, causePrediction{
			Caufin:      p.Label,
			Prob:        p.Probability,
			Descripcion: p.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"predictions": predictions,
	})
}

// predictionError writes the 200 success:false shape the front-end expects
// for label and classifier failures, with a machine-readable code.
func (s *Server) predictionError(c *gin.Context, err error) {
	code := domain.ErrCodePredictionFailure
	var unknown *domain.UnknownLabelError
	if errors.As(err, &unknown) {
		code = domain.ErrCodeUnknownLabel
	}

	s.log.WithError(err).Warn("Prediction request failed")

	c.JSON(http.StatusOK, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

// handleDepartments returns the residence department reference list
func (s *Server) handleDepartments(c *gin.Context) {
	departments, err := s.refs.Departments(c.Request.Context())
	if err != nil {
		s.referenceError(c, err)
		return
	}
	c.JSON(http.StatusOK, departments)
}

// handleMunicipalities returns the municipalities of one department
func (s *Server) handleMunicipalities(c *gin.Context) {
	departmentID, err := strconv.Atoi(c.Param("departamentoID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "departamentoID inválido",
			"code":    domain.ErrCodeInvalidInput,
		})
		return
	}

	municipalities, err := s.refs.Municipalities(c.Request.Context(), departmentID)
	if err != nil {
		s.referenceError(c, err)
		return
	}
	c.JSON(http.StatusOK, municipalities)
}

// handleCategories returns the distinct CIE-10 diagnostic groups
func (s *Server) handleCategories(c *gin.Context) {
	groups, err := s.refs.CategoryGroups(c.Request.Context())
	if err != nil {
		s.referenceError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) referenceError(c *gin.Context, err error) {
	s.log.WithError(err).Error("Reference store query failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "Error consultando datos de referencia",
		"code":    domain.ErrCodeInternalServer,
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
