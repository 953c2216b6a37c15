/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getWallet returns the caller's wallet rollup
func (s *Server) getWallet(c *gin.Context) {
	userId := currentUserId(c)
	balance, err := s.db.GetWalletBalanceDetail(c.Request.Context(), userId)
	if err != nil {
		zap.L().Error("Failed to get wallet balance", zap.String("user_id", userId), zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// getPoints returns the caller's loyalty points
func (s *Server) getPoints(c *gin.Context) {
	userId := currentUserId(c)
	points, err := s.db.GetPointsBalance(c.Request.Context(), userId)
	if err != nil {
		zap.L().Error("Failed to get points balance", zap.String("user_id", userId), zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userId, "points": points})
}

// walletTransactions returns paginated wallet history, newest first
func (s *Server) walletTransactions(c *gin.Context) {
	userId := currentUserId(c)
	limit, offset := page(c)

	transactions, err := s.db.GetWalletHistory(c.Request.Context(), userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get wallet history",
			zap.String("user_id", userId),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
			zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "limit": limit, "offset": offset})
}

// pointsTransactions returns paginated points history, newest first
func (s *Server) pointsTransactions(c *gin.Context) {
	userId := currentUserId(c)
	limit, offset := page(c)

	transactions, err := s.db.GetPointsHistory(c.Request.Context(), userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get points history", zap.String("user_id", userId), zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "limit": limit, "offset": offset})
}
