package db

import (
	"database/sql"
	"exam-portal/config"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var DB *sql.DB

func InitDB() error {
	var err error
	connStr := config.GetDBConnString()

	DB, err = sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	DB.SetMaxOpenConns(20)
	DB.SetMaxIdleConns(5)
	DB.SetConnMaxLifetime(30 * time.Minute)

	if err = DB.Ping(); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	if err := createTables(DB); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}

	return nil
}

// Close releases the pool if it was opened.
func Close() error {
	if DB == nil {
		return nil
	}
	return DB.Close()
}

func createTables(conn *sql.DB) error {
	// Registrations are written by the registration form; the table is created
	// here so a fresh database can serve the payment routes.
	registrationTable := `
	CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		student_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		school_name TEXT NOT NULL DEFAULT '',
		class TEXT NOT NULL DEFAULT '',
		gender TEXT,
		parent_name TEXT,
		parent_phone TEXT,
		fees INTEGER,
		payment_status TEXT,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		razorpay_order_id TEXT,
		razorpay_payment_id TEXT,
		razorpay_signature TEXT,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`

	orderIndex := `CREATE INDEX IF NOT EXISTS idx_registrations_order_id ON registrations (razorpay_order_id);`

	dlqTable := `
	CREATE TABLE IF NOT EXISTS dlq_messages (
		message_id UUID PRIMARY KEY,
		topic TEXT NOT NULL,
		key TEXT,
		value JSONB,
		error_message TEXT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMPTZ
	);`

	if _, err := conn.Exec(registrationTable); err != nil {
		return fmt.Errorf("error creating registrations table: %w", err)
	}

	if _, err := conn.Exec(orderIndex); err != nil {
		return fmt.Errorf("error creating order index: %w", err)
	}

	if _, err := conn.Exec(dlqTable); err != nil {
		return fmt.Errorf("error creating dlq_messages table: %w", err)
	}

	return nil
}
