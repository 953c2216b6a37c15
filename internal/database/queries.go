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

package database

const (
	// User queries
	userColumns = `id, name, email, role, active, profile_complete, kyc_verified, created_at, updated_at`

	queryInsertUser = `
		INSERT INTO users (id, name, email, role, active, profile_complete, kyc_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)`

	queryGetActiveUsers = `
		SELECT ` + userColumns + `
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ?`

	queryGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = ? AND active = 1`

	queryHasUnpaidDues = `
		SELECT EXISTS (
			SELECT 1 FROM rentals
			WHERE user_id = ? AND payment_status = 'PENDING' AND status IN ('COMPLETED', 'CANCELLED')
			  AND CAST(amount_due AS REAL) > 0
		)`

	// Wallet ledger queries
	queryGetWalletBalanceRow = `
		SELECT id, balance, version
		FROM wallet_balances
		WHERE user_id = ?`

	queryGetWalletBalance = `
		SELECT balance
		FROM wallet_balances
		WHERE user_id = ?`

	queryGetWalletBalanceDetail = `
		SELECT id, user_id, balance, COALESCE(last_transaction_id, ''), version, updated_at
		FROM wallet_balances
		WHERE user_id = ?`

	queryInsertWalletBalance = `
		INSERT INTO wallet_balances (id, user_id, balance, version, updated_at)
		VALUES (?, ?, '0', 1, ?)`

	queryUpdateWalletBalance = `
		UPDATE wallet_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`

	walletTxColumns = `id, user_id, COALESCE(rental_id, ''), transaction_type, amount, balance_before, balance_after, reference, description, created_at`

	queryInsertWalletTransaction = `
		INSERT INTO wallet_transactions (id, user_id, rental_id, transaction_type, amount, balance_before, balance_after, reference, description, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?)`

	queryCheckDuplicateWalletReference = `
		SELECT id FROM wallet_transactions WHERE reference = ? LIMIT 1`

	queryGetWalletHistory = `
		SELECT ` + walletTxColumns + `
		FROM wallet_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`

	queryWalletAmountsForUser = `
		SELECT amount FROM wallet_transactions WHERE user_id = ?`

	queryWalletDebitsForRental = `
		SELECT amount FROM wallet_transactions
		WHERE rental_id = ? AND transaction_type = 'RENTAL_PAYMENT'`

	// Points ledger queries
	queryGetPointsBalanceRow = `
		SELECT id, points, version
		FROM points_balances
		WHERE user_id = ?`

	queryGetPointsBalance = `
		SELECT points
		FROM points_balances
		WHERE user_id = ?`

	queryInsertPointsBalance = `
		INSERT INTO points_balances (id, user_id, points, version, updated_at)
		VALUES (?, ?, 0, 1, ?)`

	queryUpdatePointsBalance = `
		UPDATE points_balances
		SET points = ?, last_transaction_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`

	pointsTxColumns = `id, user_id, COALESCE(rental_id, ''), transaction_type, points, points_before, points_after, reference, description, created_at`

	queryInsertPointsTransaction = `
		INSERT INTO points_transactions (id, user_id, rental_id, transaction_type, points, points_before, points_after, reference, description, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?)`

	queryCheckDuplicatePointsReference = `
		SELECT id FROM points_transactions WHERE reference = ? LIMIT 1`

	queryGetPointsHistory = `
		SELECT ` + pointsTxColumns + `
		FROM points_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`

	queryReconcilePoints = `
		SELECT COALESCE(SUM(points), 0) FROM points_transactions WHERE user_id = ?`

	queryPointsDebitsForRental = `
		SELECT COALESCE(SUM(-points), 0) FROM points_transactions
		WHERE rental_id = ? AND transaction_type = 'RENTAL_PAYMENT'`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	// Station queries
	stationColumns = `id, serial_number, name, status, latitude, longitude, last_heartbeat_at, created_at, updated_at`

	queryGetStation = `
		SELECT ` + stationColumns + ` FROM stations WHERE id = ?`

	queryGetStationBySerial = `
		SELECT ` + stationColumns + ` FROM stations WHERE serial_number = ?`

	queryListStations = `
		SELECT ` + stationColumns + ` FROM stations ORDER BY name, serial_number`

	queryUpsertStation = `
		INSERT INTO stations (id, serial_number, name, status, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(serial_number) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at`

	queryTouchStationHeartbeat = `
		UPDATE stations SET last_heartbeat_at = ?, updated_at = ? WHERE id = ?`

	// Slot queries
	slotColumns = `id, station_id, slot_number, status, battery_level, COALESCE(current_rental_id, ''), updated_at`

	queryGetSlot = `
		SELECT ` + slotColumns + ` FROM slots WHERE id = ?`

	queryGetSlotByNumber = `
		SELECT ` + slotColumns + ` FROM slots WHERE station_id = ? AND slot_number = ?`

	queryListSlots = `
		SELECT ` + slotColumns + ` FROM slots WHERE station_id = ? ORDER BY slot_number`

	queryUpsertSlot = `
		INSERT INTO slots (id, station_id, slot_number, status, battery_level, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id, slot_number) DO UPDATE SET
			status = excluded.status,
			battery_level = excluded.battery_level,
			updated_at = excluded.updated_at`

	queryUpdateSlot = `
		UPDATE slots SET status = ?, current_rental_id = NULLIF(?, ''), updated_at = ? WHERE id = ?`

	queryUpdateSlotBattery = `
		UPDATE slots SET battery_level = ?, updated_at = ? WHERE id = ?`

	// Power bank queries
	powerBankColumns = `id, serial_number, status, battery_level, COALESCE(current_station_id, ''), COALESCE(current_slot_id, ''), updated_at`

	queryGetPowerBank = `
		SELECT ` + powerBankColumns + ` FROM power_banks WHERE id = ?`

	queryGetPowerBankBySerial = `
		SELECT ` + powerBankColumns + ` FROM power_banks WHERE serial_number = ?`

	queryGetPowerBankInSlot = `
		SELECT ` + powerBankColumns + ` FROM power_banks WHERE current_slot_id = ?`

	queryInsertPowerBank = `
		INSERT INTO power_banks (id, serial_number, status, battery_level, current_station_id, current_slot_id, updated_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)`

	queryPlacePowerBank = `
		UPDATE power_banks
		SET status = 'AVAILABLE', current_station_id = ?, current_slot_id = ?, battery_level = ?, updated_at = ?
		WHERE id = ?`

	queryDetachPowerBank = `
		UPDATE power_banks
		SET status = ?, current_station_id = NULLIF(?, ''), current_slot_id = NULL, updated_at = ?
		WHERE id = ?`

	querySetPowerBankStatus = `
		UPDATE power_banks SET status = ?, updated_at = ? WHERE id = ?`

	queryPickPowerBank = `
		SELECT s.id, s.station_id, s.slot_number, s.status, s.battery_level, COALESCE(s.current_rental_id, ''), s.updated_at,
		       p.id, p.serial_number, p.status, p.battery_level, COALESCE(p.current_station_id, ''), COALESCE(p.current_slot_id, ''), p.updated_at
		FROM slots s
		JOIN power_banks p ON p.current_slot_id = s.id
		WHERE s.station_id = ?
		  AND s.status IN ('AVAILABLE', 'OCCUPIED')
		  AND s.current_rental_id IS NULL
		  AND p.status = 'AVAILABLE'
		  AND p.battery_level >= ?
		ORDER BY s.battery_level DESC, p.battery_level DESC, s.slot_number
		LIMIT 1`

	// Package queries
	packageColumns = `id, name, duration_minutes, price, payment_model, is_active, created_at`

	queryInsertPackage = `
		INSERT INTO rental_packages (id, name, duration_minutes, price, payment_model, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetPackage = `
		SELECT ` + packageColumns + ` FROM rental_packages WHERE id = ?`

	queryListPackages = `
		SELECT ` + packageColumns + ` FROM rental_packages WHERE (? = 0 OR is_active = 1) ORDER BY duration_minutes, name`

	queryPackageReferenced = `
		SELECT EXISTS (
			SELECT 1 FROM rentals WHERE package_id = ?
			UNION ALL
			SELECT 1 FROM rental_extensions WHERE package_id = ?
		)`

	queryUpdatePackage = `
		UPDATE rental_packages
		SET name = ?, duration_minutes = ?, price = ?, payment_model = ?, is_active = ?
		WHERE id = ?`

	queryUpdatePackageActive = `
		UPDATE rental_packages SET is_active = ? WHERE id = ?`

	// Rental queries
	rentalColumns = `id, rental_code, user_id, station_id, slot_id, package_id, power_bank_id,
		COALESCE(return_station_id, ''), COALESCE(return_slot_id, ''), status, payment_status,
		started_at, ended_at, due_at, amount_paid, overdue_amount, amount_due, is_returned_on_time,
		reminder_at, reminder_sent, created_at, updated_at`

	queryInsertRental = `
		INSERT INTO rentals (id, rental_code, user_id, station_id, slot_id, package_id, power_bank_id,
			status, payment_status, started_at, due_at, amount_paid, overdue_amount, amount_due,
			reminder_at, reminder_sent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`

	queryGetRental = `
		SELECT ` + rentalColumns + ` FROM rentals WHERE id = ?`

	queryGetRentalByCode = `
		SELECT ` + rentalColumns + ` FROM rentals WHERE rental_code = ?`

	queryGetOpenRentalForUser = `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE user_id = ? AND status IN ('PENDING', 'ACTIVE', 'OVERDUE')
		ORDER BY started_at DESC, id
		LIMIT 1`

	queryGetCurrentRentalForUser = `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE user_id = ? AND status IN ('PENDING', 'ACTIVE')
		LIMIT 1`

	queryGetOpenRentalForPowerBank = `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE power_bank_id = ? AND status IN ('ACTIVE', 'OVERDUE')
		LIMIT 1`

	queryListRentalsByUser = `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`

	queryUpdateRental = `
		UPDATE rentals SET
			return_station_id = NULLIF(?, ''),
			return_slot_id = NULLIF(?, ''),
			status = ?,
			payment_status = ?,
			ended_at = ?,
			due_at = ?,
			amount_paid = ?,
			overdue_amount = ?,
			amount_due = ?,
			is_returned_on_time = ?,
			reminder_at = ?,
			reminder_sent = ?,
			updated_at = ?
		WHERE id = ? AND status = ?`

	queryInsertExtension = `
		INSERT INTO rental_extensions (id, rental_id, package_id, extension_minutes, price, points_used, wallet_amount,
			previous_due_at, new_due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListExtensions = `
		SELECT id, rental_id, package_id, extension_minutes, price, points_used, wallet_amount, previous_due_at, new_due_at, created_at
		FROM rental_extensions
		WHERE rental_id = ?
		ORDER BY created_at`

	queryMarkOverdue = `
		UPDATE rentals SET status = 'OVERDUE', updated_at = ?
		WHERE status = 'ACTIVE' AND due_at < ?`

	queryListAbandoned = `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE status = 'OVERDUE' AND due_at < ?
		ORDER BY due_at
		LIMIT ?`

	queryListDueReminders = `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE status = 'ACTIVE' AND reminder_sent = 0 AND reminder_at <= ?
		ORDER BY reminder_at
		LIMIT ?`

	queryMarkReminderSent = `
		UPDATE rentals SET reminder_sent = 1, updated_at = ?
		WHERE id = ? AND reminder_sent = 0 AND status = 'ACTIVE'`

	queryInsertIssue = `
		INSERT INTO rental_issues (id, rental_id, user_id, issue_type, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryInsertLocation = `
		INSERT INTO rental_locations (id, rental_id, latitude, longitude, accuracy, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryListLocations = `
		SELECT id, rental_id, latitude, longitude, accuracy, recorded_at
		FROM rental_locations
		WHERE rental_id = ?
		ORDER BY recorded_at`

	// Late fee configuration queries
	lateFeeColumns = `id, name, fee_type, multiplier, flat_rate_per_hour, grace_period_minutes, max_daily_rate, is_active, created_at, updated_at`

	queryInsertLateFeeConfig = `
		INSERT INTO late_fee_configs (id, name, fee_type, multiplier, flat_rate_per_hour, grace_period_minutes, max_daily_rate, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetLateFeeConfig = `
		SELECT ` + lateFeeColumns + ` FROM late_fee_configs WHERE id = ?`

	queryListLateFeeConfigs = `
		SELECT ` + lateFeeColumns + ` FROM late_fee_configs ORDER BY is_active DESC, created_at DESC`

	queryGetActiveLateFeeConfig = `
		SELECT ` + lateFeeColumns + ` FROM late_fee_configs WHERE is_active = 1`

	queryDeactivateAllLateFeeConfigs = `
		UPDATE late_fee_configs SET is_active = 0, updated_at = ? WHERE is_active = 1 AND id != ?`

	querySetLateFeeConfigActive = `
		UPDATE late_fee_configs SET is_active = ?, updated_at = ? WHERE id = ?`

	queryDeleteInactiveLateFeeConfig = `
		DELETE FROM late_fee_configs WHERE id = ? AND is_active = 0`

	// Analytics queries
	queryCountRentalsByStatus = `
		SELECT status, COUNT(*) FROM rentals GROUP BY status`

	queryCountPowerBanksByStatus = `
		SELECT status, COUNT(*) FROM power_banks GROUP BY status`

	queryCountStationsByStatus = `
		SELECT status, COUNT(*) FROM stations GROUP BY status`

	queryRentalAmounts = `
		SELECT amount_paid, amount_due, overdue_amount, payment_status FROM rentals`
)
