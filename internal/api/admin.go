package api

import (
	"net/http"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/rental"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type topUpRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" binding:"required"`
}

func (s *Server) listLateFeeConfigs(c *gin.Context) {
	configs, err := s.rentals.ListLateFeeConfigs(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

func (s *Server) createLateFeeConfig(c *gin.Context) {
	var req models.LateFeeConfiguration
	if !bindJSON(c, &req) {
		return
	}
	created, err := s.rentals.CreateLateFeeConfig(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) activateLateFeeConfig(c *gin.Context) {
	if err := s.rentals.ActivateLateFeeConfig(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deactivateLateFeeConfig(c *gin.Context) {
	if err := s.rentals.DeactivateLateFeeConfig(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteLateFeeConfig(c *gin.Context) {
	if err := s.rentals.DeleteLateFeeConfig(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) previewLateFee(c *gin.Context) {
	var req rental.PreviewRequest
	if !bindJSON(c, &req) {
		return
	}
	preview, err := s.rentals.PreviewLateFee(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (s *Server) forceRentalStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := s.rentals.ForceRentalStatus(c.Request.Context(), c.Param("id"), models.RentalStatus(req.Status))
	if err != nil {
		abortWithError(c, err)
		return
	}
	zap.L().Info("Rental status overridden",
		zap.String("rental_id", r.Id),
		zap.String("status", string(r.Status)),
		zap.String("admin_id", currentUserId(c)))
	c.JSON(http.StatusOK, r)
}

func (s *Server) forcePowerBankStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	bank, err := s.rentals.ForcePowerBankStatus(c.Request.Context(), c.Param("id"), models.PowerBankStatus(req.Status))
	if err != nil {
		abortWithError(c, err)
		return
	}
	zap.L().Info("Power bank status overridden",
		zap.String("power_bank_id", bank.Id),
		zap.String("status", string(bank.Status)),
		zap.String("admin_id", currentUserId(c)))
	c.JSON(http.StatusOK, bank)
}

func (s *Server) analytics(c *gin.Context) {
	a, err := s.rentals.Analytics(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) topUp(c *gin.Context) {
	var req topUpRequest
	if !bindJSON(c, &req) {
		return
	}
	tx, err := s.rentals.TopUp(c.Request.Context(), c.Param("user"), req.Amount, req.Reference)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}
