package mssql

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// scanAll drains rows through scan and closes them.
func scanAll[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// mapSQLServerType maps SQL Server type names to the names used across
// adapters, so column type checks work the same for every dialect.
func mapSQLServerType(sqlServerType string) string {
	switch strings.ToUpper(sqlServerType) {
	case "TINYINT", "SMALLINT":
		return "smallint"
	case "INT":
		return "integer"
	case "BIGINT":
		return "bigint"
	case "DECIMAL", "NUMERIC":
		return "numeric"
	case "MONEY", "SMALLMONEY":
		return "money"
	case "FLOAT":
		return "double precision"
	case "REAL":
		return "real"
	case "BIT":
		return "boolean"
	case "CHAR", "NCHAR":
		return "character"
	case "VARCHAR", "NVARCHAR":
		return "character varying"
	case "TEXT", "NTEXT":
		return "text"
	case "DATE":
		return "date"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "timestamp"
	case "DATETIMEOFFSET":
		return "timestamp with time zone"
	case "UNIQUEIDENTIFIER":
		return "uuid"
	default:
		return strings.ToLower(sqlServerType)
	}
}

// isDecimalType reports whether the driver returns the type as decimal text.
func isDecimalType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return true
	}
	return false
}

// normalizeValue converts driver values into plain Go values. Decimal
// columns arrive as text and become float64; other byte slices are text.
func normalizeValue(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if isDecimalType(dbType) {
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	}
	return string(b)
}
