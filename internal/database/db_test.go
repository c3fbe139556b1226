package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridmeter/pkg/models"
)

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.db")
	db, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func day(d int) time.Time {
	return time.Date(2026, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestInsertAndList(t *testing.T) {
	db, _ := openTestDB(t)

	records := []models.UsageData{
		{Date: day(1), StartTime: day(1).Add(time.Hour), KWh: 1.2, Service: "nyseg", Method: models.Consumption},
		{Date: day(1), StartTime: day(1).Add(time.Hour), KWh: 0.4, Service: "nyseg", Method: models.Generation},
		{Date: day(2), KWh: 3.0, Service: "nyseg", Method: models.ConsumptionIntoStorage},
		{Date: day(3), KWh: 5.0, Service: "coned", Method: models.Consumption},
	}
	for i := range records {
		inserted, err := db.InsertUsage(&records[i])
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	// Same start time, service and method is a duplicate
	inserted, err := db.InsertUsage(&records[0])
	require.NoError(t, err)
	assert.False(t, inserted)

	all, err := db.ListUsage(UsageFilter{Service: "nyseg"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.ConsumptionIntoStorage, all[0].Method)
	assert.True(t, all[0].Date.Equal(day(2)))

	gen, err := db.ListUsage(UsageFilter{Method: models.Generation})
	require.NoError(t, err)
	require.Len(t, gen, 1)
	assert.Equal(t, 0.4, gen[0].KWh)
	assert.True(t, gen[0].StartTime.Equal(day(1).Add(time.Hour)))

	ranged, err := db.ListUsage(UsageFilter{Since: day(2), Until: day(3)})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	services, err := db.ListServices()
	require.NoError(t, err)
	assert.Equal(t, []string{"coned", "nyseg"}, services)
}

func TestInsertRejectsInvalidMethod(t *testing.T) {
	db, _ := openTestDB(t)

	_, err := db.InsertUsage(&models.UsageData{Date: day(1), KWh: 1, Service: "nyseg"})
	assert.ErrorIs(t, err, models.ErrInvalidUsageMethod)
}

func TestGetUsageAndHasData(t *testing.T) {
	db, _ := openTestDB(t)

	_, err := db.InsertUsage(&models.UsageData{Date: day(4), KWh: 2, Service: "nyseg", Method: models.OptimizedConsumptionDecrease})
	require.NoError(t, err)

	got, err := db.GetUsage(day(4), "nyseg", models.OptimizedConsumptionDecrease)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.OptimizedConsumptionDecrease, got.Method)

	missing, err := db.GetUsage(day(4), "nyseg", models.Consumption)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := db.HasData(day(4), "nyseg", models.OptimizedConsumptionDecrease)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnpublishedAndMarkPublished(t *testing.T) {
	db, _ := openTestDB(t)

	for _, m := range []models.ElectricityUsageMethod{models.Consumption, models.GenerationFromStorage} {
		_, err := db.InsertUsage(&models.UsageData{Date: day(5), KWh: 1, Service: "nyseg", Method: m})
		require.NoError(t, err)
	}

	pending, err := db.ListUnpublishedUsage(UsageFilter{Service: "nyseg"})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, db.MarkPublished(pending[0].ID))

	pending, err = db.ListUnpublishedUsage(UsageFilter{Service: "nyseg"})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCountByMethod(t *testing.T) {
	db, _ := openTestDB(t)

	for i, m := range []models.ElectricityUsageMethod{models.Consumption, models.Consumption, models.Generation} {
		_, err := db.InsertUsage(&models.UsageData{Date: day(i + 1), KWh: 1, Service: "nyseg", Method: m})
		require.NoError(t, err)
	}

	counts, err := db.CountByMethod("nyseg")
	require.NoError(t, err)
	assert.Equal(t, map[models.ElectricityUsageMethod]int{
		models.Consumption: 2,
		models.Generation:  1,
	}, counts)

	counts, err = db.CountByMethod("coned")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestInvalidStoredMethod(t *testing.T) {
	db, _ := openTestDB(t)

	_, err := db.conn.Exec(`INSERT INTO usage_data (date, start_time, end_time, kwh, service, method, created_at)
		VALUES ('2026-05-01', '', '', 1.0, 'nyseg', 9, '2026-05-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.ListUsage(UsageFilter{Service: "nyseg"})
	assert.ErrorIs(t, err, models.ErrInvalidUsageMethod)
}

func TestMigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = conn.Exec(`
	CREATE TABLE usage_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		kwh REAL NOT NULL,
		service TEXT NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(start_time, service)
	);
	INSERT INTO usage_data (date, start_time, end_time, kwh, service, created_at)
	VALUES ('2026-04-30', '2026-04-30 01:00:00', '', 7.5, 'nyseg', '2026-04-30T00:00:00Z');
	`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	db, err := New(path)
	require.NoError(t, err)
	defer db.Close()

	records, err := db.ListUsage(UsageFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.Consumption, records[0].Method)
	assert.Equal(t, 7.5, records[0].KWh)

	// Other methods at the same hour are distinct records
	hour := time.Date(2026, 4, 30, 1, 0, 0, 0, time.UTC)
	gen := models.UsageData{Date: hour.Truncate(24 * time.Hour), StartTime: hour, KWh: 2.5, Service: "nyseg", Method: models.Generation}
	inserted, err := db.InsertUsage(&gen)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := models.UsageData{Date: hour.Truncate(24 * time.Hour), StartTime: hour, KWh: 7.5, Service: "nyseg", Method: models.Consumption}
	inserted, err = db.InsertUsage(&dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	counts, err := db.CountByMethod("nyseg")
	require.NoError(t, err)
	assert.Equal(t, map[models.ElectricityUsageMethod]int{models.Consumption: 1, models.Generation: 1}, counts)

	// Reopening an already migrated database keeps its rows
	require.NoError(t, db.Close())
	db2, err := New(path)
	require.NoError(t, err)
	defer db2.Close()

	records, err = db2.ListUsage(UsageFilter{Service: "nyseg"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMigratesMethodColumnWithOldUniqueness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.db")

	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = conn.Exec(`
	CREATE TABLE usage_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		kwh REAL NOT NULL,
		service TEXT NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		method INTEGER NOT NULL DEFAULT 1,
		UNIQUE(start_time, service)
	);
	INSERT INTO usage_data (date, start_time, end_time, kwh, service, method, created_at, published)
	VALUES ('2026-04-30', '2026-04-30 01:00:00', '', 1.5, 'nyseg', 3, '2026-04-30T00:00:00Z', 1);
	`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	db, err := New(path)
	require.NoError(t, err)
	defer db.Close()

	records, err := db.ListUsage(UsageFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ConsumptionIntoStorage, records[0].Method)

	unpublished, err := db.ListUnpublishedUsage(UsageFilter{})
	require.NoError(t, err)
	assert.Empty(t, unpublished)

	hour := time.Date(2026, 4, 30, 1, 0, 0, 0, time.UTC)
	inserted, err := db.InsertUsage(&models.UsageData{Date: hour.Truncate(24 * time.Hour), StartTime: hour, KWh: 1.0, Service: "nyseg", Method: models.Consumption})
	require.NoError(t, err)
	assert.True(t, inserted)
}
