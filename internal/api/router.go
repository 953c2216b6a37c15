package api

import (
	"net/http"
	"strconv"

	"powerbank-rental-go/internal/models"

	"github.com/gin-gonic/gin"
)

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		if err := s.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	hw := v1.Group("/hardware", s.hardwareAuth())
	hw.POST("/return", s.handleReturn)
	hw.POST("/resync", s.handleResync)

	user := v1.Group("", AuthRequired(s.cfg.Auth), rateLimit(s.cfg.RateLimit, s.redis))
	user.GET("/packages", s.listPackages)
	user.GET("/stations", s.listStations)
	user.POST("/rentals", s.startRental)
	user.GET("/rentals/active", s.activeRental)
	user.GET("/rentals/history", s.rentalHistory)
	user.POST("/rentals/:id/extend", s.extendRental)
	user.POST("/rentals/:id/cancel", s.cancelRental)
	user.POST("/rentals/:id/pay-due", s.payDue)
	user.POST("/rentals/:id/issues", s.reportIssue)
	user.POST("/rentals/:id/location", s.recordLocation)
	user.GET("/wallet", s.getWallet)
	user.GET("/wallet/transactions", s.walletTransactions)
	user.GET("/points", s.getPoints)
	user.GET("/points/transactions", s.pointsTransactions)

	admin := v1.Group("/admin", AuthRequired(s.cfg.Auth), RequireRole(models.RoleAdmin))
	admin.GET("/late-fee-configs", s.listLateFeeConfigs)
	admin.POST("/late-fee-configs", s.createLateFeeConfig)
	admin.POST("/late-fee-configs/:id/activate", s.activateLateFeeConfig)
	admin.POST("/late-fee-configs/:id/deactivate", s.deactivateLateFeeConfig)
	admin.DELETE("/late-fee-configs/:id", s.deleteLateFeeConfig)
	admin.POST("/late-fee/preview", s.previewLateFee)
	admin.PATCH("/rentals/:id/status", s.forceRentalStatus)
	admin.PATCH("/power-banks/:id/status", s.forcePowerBankStatus)
	admin.GET("/analytics", s.analytics)
	admin.POST("/wallets/:user/top-up", s.topUp)

	return r
}

// page reads limit and offset query parameters, clamping them to sane values.
func page(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
