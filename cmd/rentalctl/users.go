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

package main

import (
	"fmt"
	"strings"
	"time"

	"powerbank-rental-go/internal/api"
	"powerbank-rental-go/internal/common"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	newUserName     string
	newUserEmail    string
	newUserRole     string
	profileComplete bool
	kycVerified     bool
	tokenEmail      string
)

// addUserCmd registers a renter or operator
var addUserCmd = &cobra.Command{
	Use:   "adduser",
	Short: "Register a new user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		params := store.CreateUserParams{
			Id:              uuid.New().String(),
			Name:            strings.TrimSpace(newUserName),
			Email:           strings.ToLower(strings.TrimSpace(newUserEmail)),
			Role:            models.UserRole(strings.ToUpper(newUserRole)),
			ProfileComplete: profileComplete,
			KycVerified:     kycVerified,
		}
		if err := common.ValidateNewUser(params); err != nil {
			return err
		}

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if existing, err := db.GetUserByEmail(ctx, params.Email); err == nil {
			return fmt.Errorf("user with email %s already exists (id %s)", params.Email, existing.Id)
		} else if !store.IsKind(err, store.KindNotFound) {
			return fmt.Errorf("failed to check existing user: %w", err)
		}

		user, err := db.CreateUser(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		logger.Info("User created", zap.String("user_id", user.Id), zap.String("email", user.Email))

		common.PrintHeader("USER CREATED")
		fmt.Printf("ID:       %s\n", user.Id)
		fmt.Printf("Name:     %s\n", user.Name)
		fmt.Printf("Email:    %s\n", user.Email)
		fmt.Printf("Role:     %s\n", user.Role)
		fmt.Printf("Eligible: profile=%t kyc=%t\n", user.ProfileComplete, user.KycVerified)
		return nil
	},
}

// tokenCmd issues a bearer token for an existing user
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := lookupUser(ctx, db, tokenEmail)
		if err != nil {
			return err
		}
		token, err := api.IssueToken(cfg.Auth, *user, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	addUserCmd.Flags().StringVar(&newUserName, "name", "", "Full name")
	addUserCmd.Flags().StringVar(&newUserEmail, "email", "", "Email address")
	addUserCmd.Flags().StringVar(&newUserRole, "role", string(models.RoleUser), "USER or ADMIN")
	addUserCmd.Flags().BoolVar(&profileComplete, "profile-complete", true, "Mark the profile as complete")
	addUserCmd.Flags().BoolVar(&kycVerified, "kyc-verified", true, "Mark the user as KYC verified")
	_ = addUserCmd.MarkFlagRequired("name")
	_ = addUserCmd.MarkFlagRequired("email")

	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email of the user")
}
