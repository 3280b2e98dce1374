package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVersionConflict means a document write lost an optimistic-concurrency
// race: the row's version no longer matches the one the caller read. The
// caller should retry the whole operation once, then surface a conflict.
var ErrVersionConflict = errors.New("document version conflict")

// Database holds the database connection pool
type Database struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewDatabase creates a new database connection with retry logic
func NewDatabase() (*Database, error) {
	return NewDatabaseWithRetry(5, time.Second)
}

// NewDatabaseWithRetry creates a new database connection with configurable retry logic
func NewDatabaseWithRetry(maxRetries int, initialDelay time.Duration) (*Database, error) {
	// Prefer DATABASE_URL if provided (single DSN)
	var poolConfig *pgxpool.Config
	var err error
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		poolConfig, err = pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	} else {
		config := getConfigFromEnv()

		var connStr string
		if config.Password == "" {
			connStr = fmt.Sprintf(
				"host=%s port=%d user=%s dbname=%s sslmode=%s",
				config.Host, config.Port, config.User, config.DBName, config.SSLMode,
			)
		} else {
			connStr = fmt.Sprintf(
				"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode,
			)
		}

		poolConfig, err = pgxpool.ParseConfig(connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database config: %w", err)
		}
	}

	poolConfig.MaxConns = 20
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[WORKFLOW-DB] Connection attempt %d/%d to database %s@%s:%d",
			attempt, maxRetries, poolConfig.ConnConfig.User, poolConfig.ConnConfig.Host, poolConfig.ConnConfig.Port)

		pool, err = pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			lastErr = fmt.Errorf("failed to create connection pool: %w", err)
			log.Printf("[WORKFLOW-DB] Failed to create pool (attempt %d): %v", attempt, err)
			if attempt < maxRetries {
				time.Sleep(time.Duration(attempt-1) * initialDelay)
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pool.Ping(ctx)
		cancel()

		if err == nil {
			log.Printf("[WORKFLOW-DB] Successfully connected to database on attempt %d", attempt)
			break
		}

		lastErr = fmt.Errorf("failed to ping database: %w", err)
		log.Printf("[WORKFLOW-DB] Connection failed (attempt %d): %v", attempt, err)
		pool.Close()
		pool = nil

		if attempt < maxRetries {
			// Exponential backoff: 1s, 2s, 4s, 8s
			delay := initialDelay * time.Duration(1<<(attempt-1))
			log.Printf("[WORKFLOW-DB] Retrying in %v...", delay)
			time.Sleep(delay)
		}
	}

	if pool == nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
	}

	db := &Database{Pool: pool}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.InitSchema(ctx); err != nil {
		log.Printf("[WORKFLOW-DB] Warning: Failed to initialize database schema: %v", err)
		// Don't fail here - schema might be initialized later
	}

	log.Println("[WORKFLOW-DB] Database connection established successfully")
	return db, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Workflow service database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// InitSchema ensures the workflow tables exist
func (db *Database) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			direction TEXT NOT NULL CHECK (direction IN ('INCOMING','OUTGOING')),
			enquiry_number VARCHAR(32) NOT NULL,
			client_name VARCHAR(255) NOT NULL,
			contact_email VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'DRAFT',
			assigned_quoter VARCHAR(255),
			quote_number VARCHAR(64),
			quote_date TIMESTAMP WITH TIME ZONE,
			quote_total NUMERIC(14,2),
			order_number VARCHAR(64),
			order_date TIMESTAMP WITH TIME ZONE,
			job_number VARCHAR(32),
			invoice_number VARCHAR(64),
			invoice_date TIMESTAMP WITH TIME ZONE,
			is_emergency BOOLEAN NOT NULL DEFAULT false,
			parent_id UUID REFERENCES documents(id),
			child_suffix VARCHAR(4),
			manager_signed_at TIMESTAMP WITH TIME ZONE,
			manager_signed_by VARCHAR(255),
			client_signed_at TIMESTAMP WITH TIME ZONE,
			client_signed_by VARCHAR(255),
			created_by VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			version INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS sequence_counters (
			doc_type VARCHAR(32) NOT NULL,
			period INTEGER NOT NULL,
			last_value INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			PRIMARY KEY (doc_type, period)
		);

		CREATE TABLE IF NOT EXISTS child_suffixes (
			parent_number VARCHAR(32) NOT NULL,
			suffix VARCHAR(4) NOT NULL,
			issued_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			PRIMARY KEY (parent_number, suffix)
		);

		CREATE TABLE IF NOT EXISTS signature_tokens (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id),
			stage TEXT NOT NULL CHECK (stage IN ('manager','client')),
			token_hash VARCHAR(64) NOT NULL UNIQUE,
			signer_email VARCHAR(255) NOT NULL,
			signer_name VARCHAR(255) NOT NULL,
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
			used_at TIMESTAMP WITH TIME ZONE,
			invalidated BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS signatures (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id),
			stage TEXT NOT NULL CHECK (stage IN ('manager','client')),
			quote_number VARCHAR(64) NOT NULL DEFAULT '',
			signer_name VARCHAR(255) NOT NULL,
			signer_email VARCHAR(255) NOT NULL,
			signer_title VARCHAR(255) NOT NULL DEFAULT '',
			signer_company VARCHAR(255) NOT NULL DEFAULT '',
			consent_type TEXT NOT NULL CHECK (consent_type IN ('click','drawn')),
			consent_data TEXT NOT NULL DEFAULT '',
			ip_address VARCHAR(45) NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			quote_total NUMERIC(14,2) NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			signed_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);
		CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents (parent_id);
		CREATE INDEX IF NOT EXISTS idx_documents_created ON documents (created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_tokens_document_stage
			ON signature_tokens (document_id, stage, invalidated, used_at);
		CREATE INDEX IF NOT EXISTS idx_tokens_expiry ON signature_tokens (expires_at);
		CREATE INDEX IF NOT EXISTS idx_signatures_document ON signatures (document_id);
	`

	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure workflow schema: %w", err)
	}

	log.Println("[WORKFLOW-DB] Workflow schema verified successfully")
	return nil
}

// isUniqueViolation checks if the error is a uniqueness constraint violation
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// getConfigFromEnv reads database configuration from environment variables
func getConfigFromEnv() Config {
	config := Config{
		Host:     getEnv("DB_HOST", "localhost"),
		User:     getEnv("DB_USER", "erha_admin"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "erha_ops_db"),
		SSLMode:  getEnv("DB_SSLMODE", "prefer"),
	}

	portStr := getEnv("DB_PORT", "5432")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Printf("Invalid DB_PORT value: %s, using default 5432", portStr)
		port = 5432
	}
	config.Port = port

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
