package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on startup.  Every statement is idempotent.
// The CHECK on matches keeps the capacity counter inside its bounds even
// if a caller bypasses the clamped updates.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('PLAYER','ADMIN') NOT NULL DEFAULT 'PLAYER',
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY ix_refresh_tokens_user (user_id),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS profiles (
		user_id    BIGINT UNSIGNED PRIMARY KEY,
		full_name  VARCHAR(255) NOT NULL DEFAULT '',
		phone      VARCHAR(32) NOT NULL DEFAULT '',
		level      VARCHAR(32) NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_profiles_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS matches (
		id                  CHAR(36) PRIMARY KEY,
		title               VARCHAR(255) NOT NULL,
		location            VARCHAR(255) NOT NULL,
		match_date          DATE NOT NULL,
		match_time          TIME NOT NULL,
		total_spots         INT NOT NULL,
		available_spots     INT NOT NULL,
		price               DECIMAL(10,2) NOT NULL,
		level               VARCHAR(32) NOT NULL,
		status              ENUM('active','inactive') NOT NULL DEFAULT 'active',
		is_last_minute      BOOLEAN NOT NULL DEFAULT FALSE,
		discount_percentage INT NULL,
		duration            INT NOT NULL DEFAULT 60,
		format              INT NOT NULL DEFAULT 5,
		includes            TEXT NULL,
		description         TEXT NULL,
		created_by          BIGINT UNSIGNED NULL,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY ix_matches_schedule (status, match_date, match_time),
		CONSTRAINT ck_matches_total CHECK (total_spots > 0),
		CONSTRAINT ck_matches_available CHECK (available_spots >= 0 AND available_spots <= total_spots),
		CONSTRAINT ck_matches_discount CHECK (discount_percentage IS NULL OR discount_percentage BETWEEN 0 AND 100),
		CONSTRAINT fk_matches_creator FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS match_participants (
		id           CHAR(36) PRIMARY KEY,
		match_id     CHAR(36) NOT NULL,
		user_id      BIGINT UNSIGNED NOT NULL,
		code         VARCHAR(16) NOT NULL,
		status       ENUM('confirmed','cancelled','finished') NOT NULL DEFAULT 'confirmed',
		joined_at    DATETIME NOT NULL,
		cancelled_at DATETIME NULL,
		finished_at  DATETIME NULL,
		UNIQUE KEY uq_participants_code (code),
		KEY ix_participants_match_user (match_id, user_id, status),
		KEY ix_participants_user (user_id),
		CONSTRAINT fk_participants_match FOREIGN KEY (match_id) REFERENCES matches(id),
		CONSTRAINT fk_participants_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS pending_bookings (
		id                CHAR(36) PRIMARY KEY,
		match_id          CHAR(36) NOT NULL,
		user_id           BIGINT UNSIGNED NOT NULL,
		yape_phone        VARCHAR(32) NOT NULL,
		yape_name         VARCHAR(255) NOT NULL,
		yape_code         VARCHAR(64) NOT NULL,
		payment_proof_url VARCHAR(512) NULL,
		status            ENUM('pending','verified','rejected') NOT NULL DEFAULT 'pending',
		reviewed_by       BIGINT UNSIGNED NULL,
		reviewed_at       DATETIME NULL,
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY ix_pending_status (status, created_at),
		KEY ix_pending_match_user (match_id, user_id, status),
		CONSTRAINT fk_pending_match FOREIGN KEY (match_id) REFERENCES matches(id),
		CONSTRAINT fk_pending_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
