package postgres

import (
	"database/sql"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanReading scans a single row into a model.Reading.
// The row must contain columns in the order defined by readingColumns.
func scanReading(row scannable) (*model.Reading, error) {
	var r model.Reading
	var source, userAgent sql.NullString

	err := row.Scan(&r.ID, &r.X, &r.Y, &r.Z, &source, &userAgent, &r.ReceivedAt)
	if err != nil {
		return nil, err
	}

	r.Source = source.String
	r.UserAgent = userAgent.String
	r.ReceivedAt = r.ReceivedAt.UTC()
	return &r, nil
}

// scanReadingWithTotal scans a row that has a leading total_count column
// followed by the standard reading columns. Used by queryListReadings with
// COUNT(*) OVER().
func scanReadingWithTotal(row scannable) (*model.Reading, int, error) {
	var total int
	var r model.Reading
	var source, userAgent sql.NullString

	err := row.Scan(&total, &r.ID, &r.X, &r.Y, &r.Z, &source, &userAgent, &r.ReceivedAt)
	if err != nil {
		return nil, 0, err
	}

	r.Source = source.String
	r.UserAgent = userAgent.String
	r.ReceivedAt = r.ReceivedAt.UTC()
	return &r, total, nil
}

// nullString returns a sql.NullString that is NULL when s is empty.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timePtr converts a sql.NullTime back to a *time.Time.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
