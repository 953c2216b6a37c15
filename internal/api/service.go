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
	"context"
	"fmt"
	"time"

	"powerbank-rental-go/internal/database"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/reconciler"
	"powerbank-rental-go/internal/rental"

	"github.com/redis/go-redis/v9"
)

// ServerConfig contains the dependencies of the HTTP API
type ServerConfig struct {
	Db         *database.Service
	Rentals    *rental.Service
	Reconciler *reconciler.Service
	Config     models.Config
	Redis      *redis.Client
}

// Server exposes the rental core over HTTP
type Server struct {
	db         *database.Service
	rentals    *rental.Service
	reconciler *reconciler.Service
	cfg        models.Config
	redis      *redis.Client
	replay     ReplayGuard
	now        func() time.Time
}

func NewServer(sc ServerConfig) *Server {
	s := &Server{
		db:         sc.Db,
		rentals:    sc.Rentals,
		reconciler: sc.Reconciler,
		cfg:        sc.Config,
		redis:      sc.Redis,
		now:        time.Now,
	}
	if sc.Redis != nil {
		s.replay = NewRedisReplayGuard(sc.Redis, "hwsig")
	} else {
		s.replay = NewMemoryReplayGuard()
	}
	return s
}

func (s *Server) HealthCheck(ctx context.Context) error {
	_, err := s.db.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis health check failed: %w", err)
		}
	}
	return nil
}
