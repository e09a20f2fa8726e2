// Package handlers exposes the plan management HTTP surface. Execution is
// entirely event-driven; these endpoints only create plans and read the
// transaction records the pipeline produces.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	"github.com/satstack-service/satstack_service/internal/domain/services/plans"
)

// PlanHandlers handles savings plan management operations
type PlanHandlers struct {
	planService *plans.Service
	logger      *zap.Logger
}

// NewPlanHandlers creates a new PlanHandlers instance
func NewPlanHandlers(planService *plans.Service, logger *zap.Logger) *PlanHandlers {
	return &PlanHandlers{
		planService: planService,
		logger:      logger,
	}
}

// RegisterRoutes mounts the plan endpoints on the given router group
func (h *PlanHandlers) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/users/:userId/plans", h.CreatePlan)
	rg.GET("/users/:userId/plans/:planId/transactions", h.GetPlanTransactions)
	rg.GET("/users/:userId/transactions", h.GetUserTransactions)
}

type createPlanRequest struct {
	Amount        decimal.Decimal    `json:"amount" binding:"required"`
	Frequency     entities.Frequency `json:"frequency" binding:"required"`
	SourceOfFunds string             `json:"source_of_funds" binding:"required"`
	StartDate     time.Time          `json:"start_date" binding:"required"`
	EndDate       *time.Time         `json:"end_date"`
}

// CreatePlan handles POST /api/v1/users/:userId/plans
func (h *PlanHandlers) CreatePlan(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondBadRequest(c, "INVALID_USER_ID", "Invalid user ID format")
		return
	}

	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", "Invalid request format")
		return
	}

	plan, err := h.planService.Create(c.Request.Context(), plans.CreatePlanRequest{
		UserID:        userID,
		Amount:        req.Amount,
		Frequency:     req.Frequency,
		SourceOfFunds: req.SourceOfFunds,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	})
	if err != nil {
		if errors.Is(err, plans.ErrInvalidPlan) {
			respondBadRequest(c, "INVALID_PLAN", err.Error())
			return
		}
		h.logger.Error("Failed to create plan",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		respondInternalError(c, "PLAN_CREATE_ERROR", "Failed to create plan")
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// GetPlanTransactions handles GET /api/v1/users/:userId/plans/:planId/transactions
func (h *PlanHandlers) GetPlanTransactions(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondBadRequest(c, "INVALID_USER_ID", "Invalid user ID format")
		return
	}
	planID, err := uuid.Parse(c.Param("planId"))
	if err != nil {
		respondBadRequest(c, "INVALID_PLAN_ID", "Invalid plan ID format")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txns, err := h.planService.PlanHistory(c.Request.Context(), userID, planID, limit)
	if err != nil {
		h.logger.Error("Failed to get plan transactions",
			zap.String("user_id", userID.String()),
			zap.String("plan_id", planID.String()),
			zap.Error(err))
		respondInternalError(c, "TRANSACTIONS_ERROR", "Failed to retrieve transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// GetUserTransactions handles GET /api/v1/users/:userId/transactions
func (h *PlanHandlers) GetUserTransactions(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondBadRequest(c, "INVALID_USER_ID", "Invalid user ID format")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txns, err := h.planService.UserHistory(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to get user transactions",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		respondInternalError(c, "TRANSACTIONS_ERROR", "Failed to retrieve transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}
