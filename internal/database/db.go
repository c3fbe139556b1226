package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jgoulah/gridmeter/pkg/models"
	_ "modernc.org/sqlite"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// UsageFilter narrows list queries. Zero fields match everything.
type UsageFilter struct {
	Service string
	Method  models.ElectricityUsageMethod
	Since   time.Time
	Until   time.Time
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

const usageTableSchema = `
	CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		kwh REAL NOT NULL,
		service TEXT NOT NULL,
		method INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(date, start_time, service, method)
	)`

const usageIndexes = `
	CREATE INDEX IF NOT EXISTS idx_usage_date ON usage_data(date);
	CREATE INDEX IF NOT EXISTS idx_usage_service ON usage_data(service);
	CREATE INDEX IF NOT EXISTS idx_usage_start_time ON usage_data(start_time);
	CREATE INDEX IF NOT EXISTS idx_usage_published ON usage_data(published);
	CREATE INDEX IF NOT EXISTS idx_usage_method ON usage_data(method);
	`

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	if _, err := db.conn.Exec(fmt.Sprintf(usageTableSchema, "usage_data")); err != nil {
		return err
	}

	legacy, err := db.hasLegacyUniqueness()
	if err != nil {
		return err
	}
	if legacy {
		if err := db.rebuildUsageTable(); err != nil {
			return fmt.Errorf("migrating usage_data: %w", err)
		}
	}

	_, err = db.conn.Exec(usageIndexes)
	return err
}

// hasLegacyUniqueness reports whether usage_data was created without method in its unique key
func (db *DB) hasLegacyUniqueness() (bool, error) {
	var ddl string
	err := db.conn.QueryRow(`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'usage_data'`).Scan(&ddl)
	if err != nil {
		return false, fmt.Errorf("reading usage_data schema: %w", err)
	}
	compact := strings.Join(strings.Fields(ddl), "")
	return !strings.Contains(compact, "UNIQUE(date,start_time,service,method)"), nil
}

// rebuildUsageTable copies usage_data into a table with the current schema.
// Rows from databases without a method column are consumption.
func (db *DB) rebuildUsageTable() error {
	methodExpr := "1"
	if db.hasColumn("usage_data", "method") {
		methodExpr = "method"
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS usage_data_new`,
		fmt.Sprintf(usageTableSchema, "usage_data_new"),
		fmt.Sprintf(`INSERT OR IGNORE INTO usage_data_new (id, date, start_time, end_time, kwh, service, method, created_at, published)
		SELECT id, date, start_time, end_time, kwh, service, %s, created_at, published FROM usage_data`, methodExpr),
		`DROP TABLE usage_data`,
		`ALTER TABLE usage_data_new RENAME TO usage_data`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) hasColumn(table, column string) bool {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// InsertUsage inserts a usage record, ignoring duplicates.
// It reports whether a new row was written.
func (db *DB) InsertUsage(data *models.UsageData) (bool, error) {
	if !data.Method.IsValid() {
		return false, fmt.Errorf("inserting usage data: %w", &models.InvalidUsageMethodError{Value: fmt.Sprintf("%d", data.Method)})
	}

	query := `
	INSERT OR IGNORE INTO usage_data (date, start_time, end_time, kwh, service, method, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	dateStr := data.Date.Format(dateLayout)
	var startTimeStr, endTimeStr string
	if !data.StartTime.IsZero() {
		startTimeStr = data.StartTime.Format(dateTimeLayout)
	}
	if !data.EndTime.IsZero() {
		endTimeStr = data.EndTime.Format(dateTimeLayout)
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)

	res, err := db.conn.Exec(query, dateStr, startTimeStr, endTimeStr, data.KWh, data.Service, int(data.Method), createdAt)
	if err != nil {
		return false, fmt.Errorf("inserting usage data: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting usage data: %w", err)
	}
	return n > 0, nil
}

// GetUsage retrieves the first usage record for a date, service and method
func (db *DB) GetUsage(date time.Time, service string, method models.ElectricityUsageMethod) (*models.UsageData, error) {
	query := `
	SELECT id, date, start_time, end_time, kwh, service, method
	FROM usage_data
	WHERE date = ? AND service = ? AND method = ?
	ORDER BY start_time
	LIMIT 1
	`

	rows, err := db.conn.Query(query, date.Format(dateLayout), service, int(method))
	if err != nil {
		return nil, fmt.Errorf("querying usage data: %w", err)
	}
	results, err := scanUsageRows(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// HasData checks if data exists for a given date, service and method
func (db *DB) HasData(date time.Time, service string, method models.ElectricityUsageMethod) (bool, error) {
	data, err := db.GetUsage(date, service, method)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// ListUsage retrieves usage data matching filter, newest first
func (db *DB) ListUsage(filter UsageFilter) ([]models.UsageData, error) {
	return db.listUsage(filter, false)
}

// ListUnpublishedUsage retrieves unpublished usage data matching filter, newest first
func (db *DB) ListUnpublishedUsage(filter UsageFilter) ([]models.UsageData, error) {
	return db.listUsage(filter, true)
}

func (db *DB) listUsage(filter UsageFilter, unpublishedOnly bool) ([]models.UsageData, error) {
	where, args := filter.clauses()
	if unpublishedOnly {
		where = append(where, "published = 0")
	}

	query := `SELECT id, date, start_time, end_time, kwh, service, method FROM usage_data`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, start_time DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage data: %w", err)
	}
	return scanUsageRows(rows)
}

func (f UsageFilter) clauses() ([]string, []interface{}) {
	var where []string
	var args []interface{}
	if f.Service != "" {
		where = append(where, "service = ?")
		args = append(args, f.Service)
	}
	if f.Method != 0 {
		where = append(where, "method = ?")
		args = append(args, int(f.Method))
	}
	if !f.Since.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.Since.Format(dateLayout))
	}
	if !f.Until.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.Until.Format(dateLayout))
	}
	return where, args
}

// ListServices returns every service that has stored data
func (db *DB) ListServices() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT service FROM usage_data ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("querying services: %w", err)
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// CountByMethod returns the number of stored records per method for a service.
// An empty service counts across all services.
func (db *DB) CountByMethod(service string) (map[models.ElectricityUsageMethod]int, error) {
	query := `SELECT method, COUNT(*) FROM usage_data`
	var args []interface{}
	if service != "" {
		query += ` WHERE service = ?`
		args = append(args, service)
	}
	query += ` GROUP BY method`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting usage data: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ElectricityUsageMethod]int)
	for rows.Next() {
		var method models.ElectricityUsageMethod
		var n int
		if err := rows.Scan(&method, &n); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		counts[method] = n
	}
	return counts, rows.Err()
}

// MarkPublished marks a usage record as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE usage_data SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}

func scanUsageRows(rows *sql.Rows) ([]models.UsageData, error) {
	defer rows.Close()

	var results []models.UsageData
	for rows.Next() {
		var data models.UsageData
		var dateStr string
		var startTimeStr, endTimeStr sql.NullString

		err := rows.Scan(&data.ID, &dateStr, &startTimeStr, &endTimeStr, &data.KWh, &data.Service, &data.Method)
		if err != nil {
			if errors.Is(err, models.ErrInvalidUsageMethod) {
				return nil, fmt.Errorf("scanning row %d: %w", data.ID, err)
			}
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		data.Date, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing date: %w", err)
		}

		if startTimeStr.Valid && startTimeStr.String != "" {
			data.StartTime, err = time.Parse(dateTimeLayout, startTimeStr.String)
			if err != nil {
				return nil, fmt.Errorf("parsing start_time: %w", err)
			}
		}

		if endTimeStr.Valid && endTimeStr.String != "" {
			data.EndTime, err = time.Parse(dateTimeLayout, endTimeStr.String)
			if err != nil {
				return nil, fmt.Errorf("parsing end_time: %w", err)
			}
		}

		results = append(results, data)
	}

	return results, rows.Err()
}
