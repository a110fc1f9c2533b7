package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
// service_records has no foreign key on booking_id: snapshots outlive the
// booking they were taken from.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(30) NOT NULL,
		email VARCHAR(255) NOT NULL,
		mobile VARCHAR(10) NULL,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('customer','owner') NOT NULL DEFAULT 'customer',
		address VARCHAR(255) NOT NULL DEFAULT '',
		city VARCHAR(100) NOT NULL DEFAULT '',
		state VARCHAR(100) NOT NULL DEFAULT '',
		pincode VARCHAR(10) NOT NULL DEFAULT '',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		email_verified TINYINT(1) NOT NULL DEFAULT 0,
		mobile_verified TINYINT(1) NOT NULL DEFAULT 0,
		email_otp_code VARCHAR(6) NULL,
		email_otp_expires_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_email (email),
		KEY idx_users_role (role)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		customer_id BIGINT UNSIGNED NOT NULL,
		service VARCHAR(32) NOT NULL,
		service_name VARCHAR(120) NOT NULL,
		date DATETIME NOT NULL,
		time_slot VARCHAR(5) NOT NULL,
		scheduled_at DATETIME NOT NULL,
		location ENUM('shop','home') NOT NULL,
		bike_model VARCHAR(120) NOT NULL,
		bike_number VARCHAR(32) NOT NULL,
		description TEXT NOT NULL,
		urgency ENUM('low','medium','high') NOT NULL DEFAULT 'medium',
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		rejection_reason VARCHAR(500) NOT NULL DEFAULT '',
		cost DECIMAL(10,2) NOT NULL,
		actual_cost DECIMAL(10,2) NULL,
		payment_status ENUM('pending','paid','refunded') NOT NULL DEFAULT 'pending',
		payment_mode ENUM('cash','online') NULL,
		payment_reference VARCHAR(255) NOT NULL DEFAULT '',
		delivery_method ENUM('drop','pickup') NULL,
		receipt JSON NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_bookings_customer (customer_id),
		KEY idx_bookings_status_date (status, date),
		KEY idx_bookings_scheduled (scheduled_at),
		CONSTRAINT fk_bookings_customer FOREIGN KEY (customer_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		recipient_id BIGINT UNSIGNED NOT NULL,
		sender_id BIGINT UNSIGNED NOT NULL,
		type VARCHAR(32) NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		booking_id BIGINT UNSIGNED NULL,
		priority ENUM('low','medium','high','urgent') NOT NULL DEFAULT 'medium',
		is_read TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_notifications_inbox (recipient_id, is_read, created_at),
		KEY idx_notifications_dedupe (recipient_id, booking_id, type),
		CONSTRAINT fk_notifications_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS service_records (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		booking_id BIGINT UNSIGNED NOT NULL,
		customer_id BIGINT UNSIGNED NOT NULL,
		service VARCHAR(32) NOT NULL,
		service_name VARCHAR(120) NOT NULL,
		date DATETIME NOT NULL,
		time_slot VARCHAR(5) NOT NULL,
		location VARCHAR(8) NOT NULL,
		bike_model VARCHAR(120) NOT NULL,
		bike_number VARCHAR(32) NOT NULL,
		description TEXT NOT NULL,
		cost_quoted DECIMAL(10,2) NOT NULL,
		cost_actual DECIMAL(10,2) NOT NULL,
		payment_mode VARCHAR(16) NULL,
		payment_status VARCHAR(16) NOT NULL,
		payment_reference VARCHAR(255) NOT NULL DEFAULT '',
		receipt JSON NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_service_records_booking (booking_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
