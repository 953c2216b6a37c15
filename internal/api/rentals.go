package api

import (
	"net/http"

	"powerbank-rental-go/internal/store"

	"github.com/gin-gonic/gin"
)

type startRentalRequest struct {
	StationSerial string `json:"station_serial" binding:"required"`
	PackageId     string `json:"package_id" binding:"required"`
}

type extendRentalRequest struct {
	PackageId string `json:"package_id" binding:"required"`
}

type issueRequest struct {
	IssueType   string `json:"issue_type" binding:"required"`
	Description string `json:"description"`
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, store.Invalid("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) startRental(c *gin.Context) {
	var req startRentalRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := s.rentals.Start(c.Request.Context(), currentUserId(c), req.StationSerial, req.PackageId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) extendRental(c *gin.Context) {
	var req extendRentalRequest
	if !bindJSON(c, &req) {
		return
	}
	r, ext, err := s.rentals.Extend(c.Request.Context(), currentUserId(c), c.Param("id"), req.PackageId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rental": r, "extension": ext})
}

func (s *Server) cancelRental(c *gin.Context) {
	r, err := s.rentals.Cancel(c.Request.Context(), currentUserId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) payDue(c *gin.Context) {
	r, alloc, err := s.rentals.PayDue(c.Request.Context(), currentUserId(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rental": r, "allocation": alloc})
}

func (s *Server) activeRental(c *gin.Context) {
	view, err := s.rentals.GetActive(c.Request.Context(), currentUserId(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) rentalHistory(c *gin.Context) {
	limit, offset := page(c)
	rentals, err := s.rentals.History(c.Request.Context(), currentUserId(c), limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rentals": rentals, "limit": limit, "offset": offset})
}

func (s *Server) reportIssue(c *gin.Context) {
	var req issueRequest
	if !bindJSON(c, &req) {
		return
	}
	issue, err := s.rentals.ReportIssue(c.Request.Context(), currentUserId(c), c.Param("id"), req.IssueType, req.Description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

func (s *Server) recordLocation(c *gin.Context) {
	var req locationRequest
	if !bindJSON(c, &req) {
		return
	}
	loc, err := s.rentals.RecordLocation(c.Request.Context(), currentUserId(c), c.Param("id"), req.Latitude, req.Longitude, req.Accuracy)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loc)
}

func (s *Server) listPackages(c *gin.Context) {
	packages, err := s.db.ListPackages(c.Request.Context(), true)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

func (s *Server) listStations(c *gin.Context) {
	stations, err := s.db.ListStations(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stations": stations})
}
