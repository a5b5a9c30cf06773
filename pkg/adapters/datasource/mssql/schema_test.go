package mssql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaDiscoverer_DiscoverTables(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewSchemaDiscovererFromDB(db)

	mock.ExpectQuery(`FROM sys\.tables t`).
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "row_count"}).
			AddRow("dbo", "employees", int64(6)).
			AddRow("dbo", "projects", int64(3)))

	tables, err := d.DiscoverTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "dbo", tables[0].SchemaName)
	assert.Equal(t, "employees", tables[0].TableName)
	assert.Equal(t, int64(3), tables[1].RowCount)
	assertSQLMock(t, mock)
}

func TestSchemaDiscoverer_DiscoverColumns_MapsTypes(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewSchemaDiscovererFromDB(db)

	mock.ExpectQuery(`FROM sys\.columns c`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "is_primary_key", "ordinal_position"}).
			AddRow("id", "int", 0, 1, 1).
			AddRow("name", "nvarchar", 0, 0, 2).
			AddRow("salary", "decimal", 1, 0, 3))

	cols, err := d.DiscoverColumns(context.Background(), "dbo", "employees")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.True(t, cols[0].IsPrimaryKey)
	assert.Equal(t, "integer", cols[0].DataType)
	assert.Equal(t, "character varying", cols[1].DataType)
	assert.Equal(t, "numeric", cols[2].DataType)
	assert.True(t, cols[2].IsNullable)
	assertSQLMock(t, mock)
}

func TestSchemaDiscoverer_DiscoverForeignKeys(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewSchemaDiscovererFromDB(db)

	mock.ExpectQuery(`FROM sys\.foreign_keys fk`).
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "source_schema", "source_table", "source_column", "target_schema", "target_table", "target_column"}).
			AddRow("fk_pa_emp", "dbo", "project_assignments", "employee_id", "dbo", "employees", "id"))

	fks, err := d.DiscoverForeignKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "employees", fks[0].TargetTable)
	assertSQLMock(t, mock)
}
