package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// readingColumns is the column list used for SELECT statements on the readings table.
const readingColumns = `id, x, y, z, source, user_agent, received_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryRecordReading(ctx context.Context, db executor, r *model.Reading) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO readings (id, x, y, z, source, user_agent, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID,
		r.X,
		r.Y,
		r.Z,
		nullString(r.Source),
		nullString(r.UserAgent),
		r.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("record reading %s: %w", r.ID, err)
	}
	return nil
}

func queryGetReading(ctx context.Context, db executor, id string) (*model.Reading, error) {
	row := db.QueryRowContext(ctx, `SELECT `+readingColumns+` FROM readings WHERE id = $1`, id)
	return scanReading(row)
}

func queryLatestReading(ctx context.Context, db executor) (*model.Reading, error) {
	row := db.QueryRowContext(ctx, `SELECT `+readingColumns+` FROM readings ORDER BY received_at DESC, id DESC LIMIT 1`)
	return scanReading(row)
}

func queryListReadings(ctx context.Context, db executor, filter model.ReadingFilter) ([]*model.Reading, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Source != "" {
		whereClauses = append(whereClauses, "source = "+nextArg())
		args = append(args, filter.Source)
	}

	if !filter.Since.IsZero() {
		whereClauses = append(whereClauses, "received_at >= "+nextArg())
		args = append(args, filter.Since)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + readingColumns + " FROM readings" + whereSQL +
		" ORDER BY received_at DESC, id DESC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var readings []*model.Reading
	var total int
	for rows.Next() {
		r, t, err := scanReadingWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan readings: %w", err)
		}
		total = t
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan readings: %w", err)
	}

	return readings, total, nil
}

func queryStats(ctx context.Context, db executor) (model.Stats, error) {
	var (
		st               model.Stats
		minX, maxX, avgX sql.NullFloat64
		minY, maxY, avgY sql.NullFloat64
		minZ, maxZ, avgZ sql.NullFloat64
		first, last      sql.NullTime
	)
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			MIN(x), MAX(x), AVG(x),
			MIN(y), MAX(y), AVG(y),
			MIN(z), MAX(z), AVG(z),
			MIN(received_at), MAX(received_at)
		FROM readings`).Scan(
		&st.Count,
		&minX, &maxX, &avgX,
		&minY, &maxY, &avgY,
		&minZ, &maxZ, &avgZ,
		&first, &last,
	)
	if err != nil {
		return model.Stats{}, fmt.Errorf("reading stats: %w", err)
	}

	st.X = model.AxisStats{Min: minX.Float64, Max: maxX.Float64, Mean: avgX.Float64}
	st.Y = model.AxisStats{Min: minY.Float64, Max: maxY.Float64, Mean: avgY.Float64}
	st.Z = model.AxisStats{Min: minZ.Float64, Max: maxZ.Float64, Mean: avgZ.Float64}
	st.First = timePtr(first)
	st.Last = timePtr(last)
	return st, nil
}
