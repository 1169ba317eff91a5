package trd

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := OpenLocalDatabase(filepath.Join(t.TempDir(), "calib.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, MigrateDatabase(db))
	return db
}

func TestMigrateDatabaseIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, MigrateDatabase(db))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM CalibPass"))
	assert.Equal(t, 0, n)
}

func TestStoreLoadCalibration(t *testing.T) {
	db := setupTestDB(t)
	params := DefaultSimParameters()
	geo := NewGeometry(DefaultConfiguration().Geometry)

	set := NewCalibrationSet(geo, params)
	gain, _ := set.Object(QuantityGain)
	gain.Det[5] = 1.2
	gain.Fitted[5] = true
	pads := defaultPadValues(QuantityGain, geo.NPads(5), gain.Det[5])
	pads[2*NCol+9] = 0.8
	gain.Pad[5] = pads

	vdrift, _ := set.Object(QuantityVdrift)
	vdrift.Det[7] = 1.4

	t0, _ := set.Object(QuantityT0)
	t0.Det[8] = 2.5
	t0.Fitted[8] = true
	t0.Det[9] = -0.5

	pass := NewCalibrationPass(10, 20, "test pass")
	require.NoError(t, StoreCalibration(db, set, pass))

	var stored []CalibrationPass
	require.NoError(t, db.Select(&stored, "SELECT PassID, MinRun, MaxRun, CreatedAt, Comment FROM CalibPass"))
	require.Len(t, stored, 1)
	assert.Equal(t, pass, stored[0])

	loaded, err := LoadCalibration(db, geo, params, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, loaded.RunNumber)

	lGain, _ := loaded.Object(QuantityGain)
	assert.InDelta(t, 1.2, lGain.Det[5], 1e-12)
	assert.True(t, lGain.Fitted[5])
	assert.False(t, lGain.Fitted[6])
	assert.InDelta(t, 1.2*0.8, loaded.GainFactor(5, 2, 9), 1e-12)
	assert.InDelta(t, 1.2, loaded.GainFactor(5, 2, 10), 1e-12)

	lVdrift, _ := loaded.Object(QuantityVdrift)
	assert.InDelta(t, 1.4, lVdrift.Det[7], 1e-12)
	assert.False(t, lVdrift.Fitted[7])

	lT0, _ := loaded.Object(QuantityT0)
	assert.InDelta(t, 2.5, lT0.Det[8], 1e-12)
	assert.True(t, lT0.Fitted[8])
	assert.InDelta(t, -0.5, lT0.Det[9], 1e-12)
	assert.False(t, lT0.Fitted[9])

	outside, err := LoadCalibration(db, geo, params, 30)
	require.NoError(t, err)
	assert.Equal(t, 1.0, outside.GainFactor(5, 2, 9))
	assert.Equal(t, params.DriftVelocity, outside.Vdrift(7))
}

func TestLoadCalibrationLatestPassWins(t *testing.T) {
	db := setupTestDB(t)
	params := DefaultSimParameters()
	geo := NewGeometry(DefaultConfiguration().Geometry)

	first := NewCalibrationSet(geo, params)
	v, _ := first.Object(QuantityVdrift)
	v.Det[0] = 1.3
	v.Fitted[0] = true
	require.NoError(t, StoreCalibration(db, first, NewCalibrationPass(0, 100, "first")))

	second := NewCalibrationSet(geo, params)
	v, _ = second.Object(QuantityVdrift)
	v.Det[0] = 1.6
	v.Fitted[0] = true
	require.NoError(t, StoreCalibration(db, second, NewCalibrationPass(50, 60, "second")))

	loaded, err := LoadCalibration(db, geo, params, 55)
	require.NoError(t, err)
	assert.InDelta(t, 1.6, loaded.Vdrift(0), 1e-12)

	loaded, err = LoadCalibration(db, geo, params, 40)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, loaded.Vdrift(0), 1e-12)
}

func TestOpenDatabaseUnknownDriver(t *testing.T) {
	config := DefaultConfiguration()
	config.DBDriver = "postgres"
	_, err := OpenDatabase(config)
	assert.Error(t, err)
}
