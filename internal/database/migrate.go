package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		nickname      VARCHAR(100) NOT NULL DEFAULT '',
		phone         VARCHAR(30)  NOT NULL DEFAULT '',
		role          ENUM('USER','PARTNER') NOT NULL DEFAULT 'USER',
		profile_image VARCHAR(512) NULL,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_members_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		member_id  BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		CONSTRAINT fk_refresh_tokens_member FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS stores (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		owner_id   BIGINT UNSIGNED NOT NULL,
		store_name VARCHAR(200) NOT NULL,
		category   VARCHAR(100) NOT NULL DEFAULT '',
		body       TEXT NOT NULL,
		address    VARCHAR(300) NOT NULL,
		contact    VARCHAR(50)  NOT NULL DEFAULT '',
		kakao      VARCHAR(300) NOT NULL DEFAULT '',
		latitude   DOUBLE NOT NULL DEFAULT 0,
		longitude  DOUBLE NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_stores_owner FOREIGN KEY (owner_id) REFERENCES members(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS store_images (
		id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		store_id     BIGINT UNSIGNED NOT NULL,
		link         VARCHAR(512) NOT NULL,
		is_thumbnail BOOLEAN NOT NULL DEFAULT FALSE,
		CONSTRAINT fk_store_images_store FOREIGN KEY (store_id) REFERENCES stores(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS items (
		id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		store_id     BIGINT UNSIGNED NOT NULL,
		item_name    VARCHAR(200) NOT NULL,
		price        INT UNSIGNED NOT NULL,
		total_ticket INT UNSIGNED NOT NULL,
		status       ENUM('active','deleted') NOT NULL DEFAULT 'active',
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_items_store (store_id),
		CONSTRAINT fk_items_store FOREIGN KEY (store_id) REFERENCES stores(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id                BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		member_id         BIGINT UNSIGNED NOT NULL,
		store_id          BIGINT UNSIGNED NOT NULL,
		reservation_date  DATE NOT NULL,
		reservation_name  VARCHAR(100) NOT NULL DEFAULT '',
		reservation_phone VARCHAR(30)  NOT NULL DEFAULT '',
		reservation_email VARCHAR(255) NOT NULL DEFAULT '',
		status            ENUM('PENDING','CANCELLED') NOT NULL DEFAULT 'PENDING',
		total_price       INT UNSIGNED NOT NULL,
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_reservations_store_date (store_id, reservation_date),
		KEY idx_reservations_member (member_id),
		CONSTRAINT fk_reservations_member FOREIGN KEY (member_id) REFERENCES members(id),
		CONSTRAINT fk_reservations_store FOREIGN KEY (store_id) REFERENCES stores(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservation_items (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reservation_id BIGINT UNSIGNED NOT NULL,
		item_id        BIGINT UNSIGNED NOT NULL,
		ticket_count   INT UNSIGNED NOT NULL,
		unit_price     INT UNSIGNED NOT NULL,
		KEY idx_reservation_items_reservation (reservation_id),
		CONSTRAINT fk_reservation_items_reservation FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE,
		CONSTRAINT fk_reservation_items_item FOREIGN KEY (item_id) REFERENCES items(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
