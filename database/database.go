package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/cljackson1279/SiteRecap/config"
	"github.com/cljackson1279/SiteRecap/models"

	_ "github.com/go-sql-driver/mysql"
)

const maxPingAttempts = 8

// Database represents the database connection
type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	waitInterval := 1 * time.Second
	var pingErr error
	for attempt := 1; attempt <= maxPingAttempts; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			break
		}
		if attempt == maxPingAttempts {
			db.Close()
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxPingAttempts, pingErr)
		}
		log.WithError(pingErr).Warnf("Database connection failed, retrying in %v", waitInterval)
		time.Sleep(waitInterval)
		waitInterval *= 2
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// CreateDailyReportsTable creates the daily_reports table if it doesn't exist
func (d *Database) CreateDailyReportsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS daily_reports (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		project_id VARCHAR(64) NOT NULL,
		project_name VARCHAR(255) NOT NULL DEFAULT '',
		report_date DATE NOT NULL,
		owner_markdown MEDIUMTEXT,
		gc_markdown MEDIUMTEXT,
		report_json MEDIUMTEXT,
		photos_analyzed INT NOT NULL DEFAULT 0,
		weather_included BOOLEAN NOT NULL DEFAULT FALSE,
		model_used VARCHAR(64) NOT NULL DEFAULT '',
		degraded BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_project_date (project_id, report_date),
		INDEX idx_daily_reports_date (report_date)
	)`

	_, err := d.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create daily_reports table: %w", err)
	}

	log.Info("daily_reports table created/verified successfully")
	return nil
}

// columnExists checks if a column exists in a table
func (d *Database) columnExists(tableName, columnName string) (bool, error) {
	query := `
	SELECT COUNT(*)
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = DATABASE()
	AND TABLE_NAME = ?
	AND COLUMN_NAME = ?`

	var count int
	err := d.db.QueryRow(query, tableName, columnName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if column exists: %w", err)
	}

	return count > 0, nil
}

// indexExists checks if an index exists in a table
func (d *Database) indexExists(tableName, indexName string) (bool, error) {
	query := `
	SELECT COUNT(*)
	FROM INFORMATION_SCHEMA.STATISTICS
	WHERE TABLE_SCHEMA = DATABASE()
	AND TABLE_NAME = ?
	AND INDEX_NAME = ?`

	var count int
	err := d.db.QueryRow(query, tableName, indexName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if index exists: %w", err)
	}

	return count > 0, nil
}

// MigrateDailyReportsTable adds columns introduced after the initial schema.
func (d *Database) MigrateDailyReportsTable() error {
	// report_json and degraded were added after the first deployment
	columns := []struct {
		name string
		ddl  string
	}{
		{"report_json", "ALTER TABLE daily_reports ADD COLUMN report_json MEDIUMTEXT"},
		{"degraded", "ALTER TABLE daily_reports ADD COLUMN degraded BOOLEAN NOT NULL DEFAULT FALSE"},
		{"model_used", "ALTER TABLE daily_reports ADD COLUMN model_used VARCHAR(64) NOT NULL DEFAULT ''"},
	}

	for _, col := range columns {
		exists, err := d.columnExists("daily_reports", col.name)
		if err != nil {
			return fmt.Errorf("failed to check if %s column exists: %w", col.name, err)
		}
		if exists {
			log.Infof("%s column already exists in daily_reports table, skipping migration", col.name)
			continue
		}
		log.Infof("Adding %s column to daily_reports table...", col.name)
		if _, err := d.db.Exec(col.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", col.name, err)
		}
		log.Infof("Successfully added %s column to daily_reports table", col.name)
	}

	exists, err := d.indexExists("daily_reports", "idx_daily_reports_date")
	if err != nil {
		return fmt.Errorf("failed to check if idx_daily_reports_date index exists: %w", err)
	}
	if !exists {
		log.Info("Adding idx_daily_reports_date index to daily_reports table...")
		if _, err := d.db.Exec("ALTER TABLE daily_reports ADD INDEX idx_daily_reports_date (report_date)"); err != nil {
			return fmt.Errorf("failed to add idx_daily_reports_date index: %w", err)
		}
	}

	return nil
}

// SaveReport inserts or updates the report for one project-day. Regeneration
// for the same day replaces the previous row in place.
func (d *Database) SaveReport(report *models.StoredReport) error {
	query := `
	INSERT INTO daily_reports (
		project_id, project_name, report_date,
		owner_markdown, gc_markdown, report_json,
		photos_analyzed, weather_included, model_used, degraded
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		project_name = VALUES(project_name),
		owner_markdown = VALUES(owner_markdown),
		gc_markdown = VALUES(gc_markdown),
		report_json = VALUES(report_json),
		photos_analyzed = VALUES(photos_analyzed),
		weather_included = VALUES(weather_included),
		model_used = VALUES(model_used),
		degraded = VALUES(degraded)`

	_, err := d.db.Exec(query,
		report.ProjectID,
		report.ProjectName,
		report.ReportDate,
		report.OwnerMarkdown,
		report.GCMarkdown,
		report.ReportJSON,
		report.PhotosAnalyzed,
		report.WeatherIncluded,
		report.ModelUsed,
		report.Degraded,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// GetReport fetches the stored report for one project-day.
func (d *Database) GetReport(projectID, date string) (*models.StoredReport, error) {
	query := `
	SELECT project_id, project_name, report_date,
		owner_markdown, gc_markdown, report_json,
		photos_analyzed, weather_included, model_used, degraded,
		created_at, updated_at
	FROM daily_reports
	WHERE project_id = ? AND report_date = ?`

	var report models.StoredReport
	var reportJSON sql.NullString

	err := d.db.QueryRow(query, projectID, date).Scan(
		&report.ProjectID,
		&report.ProjectName,
		&report.ReportDate,
		&report.OwnerMarkdown,
		&report.GCMarkdown,
		&reportJSON,
		&report.PhotosAnalyzed,
		&report.WeatherIncluded,
		&report.ModelUsed,
		&report.Degraded,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report for project %s on %s not found", projectID, date)
		}
		return nil, fmt.Errorf("failed to fetch report for project %s on %s: %w", projectID, date, err)
	}

	report.ReportJSON = reportJSON.String
	return &report, nil
}

// Stats summarizes stored reports for the stats endpoint.
type Stats struct {
	TotalReports    int    `json:"total_reports"`
	DegradedReports int    `json:"degraded_reports"`
	LastReportDate  string `json:"last_report_date"`
}

// GetStats returns aggregate counters over daily_reports.
func (d *Database) GetStats() (*Stats, error) {
	query := `
	SELECT COUNT(*),
		COALESCE(SUM(degraded), 0),
		COALESCE(MAX(report_date), '')
	FROM daily_reports`

	var stats Stats
	err := d.db.QueryRow(query).Scan(&stats.TotalReports, &stats.DegradedReports, &stats.LastReportDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}

	return &stats, nil
}

// GetDB returns the underlying sql.DB for direct queries
func (d *Database) GetDB() *sql.DB {
	return d.db
}
