package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	_ "github.com/lib/pq"

	"zeb-assist-backend/internal/orders"
)

// DB wraps the database connection used as an alternative source for
// the order index at startup.
type DB struct {
	*sql.DB
}

// New creates a new database connection from the provided connection string
func New(connectionString string) (*DB, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	sqlDB, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		// Try with SSL disabled if connection fails and SSL mode not specified
		if !strings.Contains(strings.ToLower(connectionString), "sslmode") {
			log.Println("retrying database connection with SSL disabled")
			sqlDB.Close()
			retry := connectionString
			if strings.Contains(retry, "?") {
				retry += "&sslmode=disable"
			} else {
				retry += "?sslmode=disable"
			}
			sqlDB, err = sql.Open("postgres", retry)
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}
		}
		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return &DB{DB: sqlDB}, nil
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck() error {
	return db.Ping()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// LoadOrderIndex reads all order rows and derives the email index from
// them. Rows are grouped per email in insertion order.
func (db *DB) LoadOrderIndex() (map[string]orders.Record, map[string][]string, error) {
	rows, err := db.Query(`
		SELECT order_number, email, order_date, payment_status, fulfillment_status,
		       total, total_refund, COALESCE(refund_date, ''),
		       shipping_city, shipping_country, first_name, last_name, cancelled, items
		FROM orders
		ORDER BY id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	byNumber := make(map[string]orders.Record)
	byEmail := make(map[string][]string)
	for rows.Next() {
		var rec orders.Record
		var itemsJSON []byte
		if err := rows.Scan(
			&rec.OrderNumber, &rec.Email, &rec.Date, &rec.PaymentStatus, &rec.FulfillmentStatus,
			&rec.Total, &rec.TotalRefund, &rec.RefundDate,
			&rec.ShippingCity, &rec.ShippingCountry, &rec.FirstName, &rec.LastName,
			&rec.Cancelled, &itemsJSON,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		if len(itemsJSON) > 0 {
			if err := json.Unmarshal(itemsJSON, &rec.Items); err != nil {
				return nil, nil, fmt.Errorf("failed to decode items for %s: %w", rec.OrderNumber, err)
			}
		}
		key := rec.OrderNumber
		if !strings.HasPrefix(key, "#") {
			key = "#" + key
		}
		byNumber[key] = rec
		if rec.Email != "" {
			email := strings.ToLower(rec.Email)
			byEmail[email] = append(byEmail[email], key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read order rows: %w", err)
	}
	return byNumber, byEmail, nil
}

// EnsureSchema creates the orders table when it does not exist yet.
func (db *DB) EnsureSchema() error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			order_number TEXT UNIQUE NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			order_date TEXT NOT NULL DEFAULT '',
			payment_status TEXT NOT NULL DEFAULT '',
			fulfillment_status TEXT NOT NULL DEFAULT '',
			total NUMERIC NOT NULL DEFAULT 0,
			total_refund NUMERIC NOT NULL DEFAULT 0,
			refund_date TEXT,
			shipping_city TEXT NOT NULL DEFAULT '',
			shipping_country TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			cancelled BOOLEAN NOT NULL DEFAULT FALSE,
			items JSONB NOT NULL DEFAULT '[]'
		)
	`
	_, err := db.Exec(createTableSQL)
	return err
}
