package trd

import (
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	sqlx "github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true&multiStatements=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

// OpenLocalDatabase opens (or creates) a SQLite calibration database.
func OpenLocalDatabase(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer
	db.SetMaxOpenConns(1)
	return db, nil
}

// OpenDatabase connects to the calibration database selected by the
// configuration.
func OpenDatabase(config Configuration) (*sqlx.DB, error) {
	switch config.DBDriver {
	case "sqlite":
		return OpenLocalDatabase(config.DBPath)
	case "mysql", "":
		return ConnectToDatabase(config.User, config.Passwd, config.Host, config.DBName)
	default:
		return nil, fmt.Errorf("unknown database driver %q", config.DBDriver)
	}
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logger.Info(fmt.Sprintf(format, v...), "migrate")
}

func (migrateLogger) Verbose() bool {
	return configuration.Verbosity > 2
}

// MigrateDatabase creates or updates the calibration tables.
func MigrateDatabase(db *sqlx.DB) error {
	var driver database.Driver
	var dir string
	var err error
	switch db.DriverName() {
	case "sqlite":
		driver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		dir = "migrations/sqlite"
	case "mysql":
		driver, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
		dir = "migrations/mysql"
	default:
		return fmt.Errorf("no migrations for database driver %q", db.DriverName())
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	// Closing m would close the database connection.
	m, err := migrate.NewWithInstance("iofs", source, db.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// CalibrationPass identifies one set of stored calibration constants.
type CalibrationPass struct {
	PassID    string `db:"PassID"`
	MinRun    int    `db:"MinRun"`
	MaxRun    int    `db:"MaxRun"`
	CreatedAt string `db:"CreatedAt"`
	Comment   string `db:"Comment"`
}

func NewCalibrationPass(minRun, maxRun int, comment string) CalibrationPass {
	return CalibrationPass{
		PassID:    uuid.NewString(),
		MinRun:    minRun,
		MaxRun:    maxRun,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Comment:   comment,
	}
}

type CalibDetEntry struct {
	PassID   string  `db:"PassID"`
	MinRun   int     `db:"MinRun"`
	MaxRun   int     `db:"MaxRun"`
	Quantity string  `db:"Quantity"`
	Detector int     `db:"Detector"`
	Value    float64 `db:"Value"`
}

type CalibPadEntry struct {
	PassID   string  `db:"PassID"`
	MinRun   int     `db:"MinRun"`
	MaxRun   int     `db:"MaxRun"`
	Quantity string  `db:"Quantity"`
	Detector int     `db:"Detector"`
	PadRow   int     `db:"PadRow"`
	PadCol   int     `db:"PadCol"`
	Value    float64 `db:"Value"`
}

// LoadCalibration reads the calibration constants valid for a run. The
// nominal values are used for everything not in the database; when passes
// overlap the most recently stored one wins.
func LoadCalibration(db *sqlx.DB, geo *Geometry, params SimParameters, runNumber int) (*CalibrationSet, error) {
	set := NewCalibrationSet(geo, params)
	set.RunNumber = runNumber

	query := "SELECT PassID, MinRun, MaxRun, Quantity, Detector, Value FROM CalibDet WHERE MinRun <= %d and MaxRun >= %d ORDER BY Id"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading calibration of run %d from database", runNumber)
		logger.Info(message, "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}
	rows, err := db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	nDet := 0
	for rows.Next() {
		result := CalibDetEntry{}
		if err := rows.StructScan(&result); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		obj, err := set.Object(result.Quantity)
		if err != nil {
			logger.Error(fmt.Sprintf("Skipping calibration row: %v", err))
			continue
		}
		if !geo.ValidDetector(result.Detector) {
			logger.Error(fmt.Sprintf("Skipping calibration row: %v", &ErrInvalidDetector{Detector: result.Detector}))
			continue
		}
		obj.Det[result.Detector], obj.Fitted[result.Detector] = DecodeValue(result.Quantity, result.Value)
		nDet++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading DB rows: %w", err)
	}

	query = "SELECT PassID, MinRun, MaxRun, Quantity, Detector, PadRow, PadCol, Value FROM CalibPad WHERE MinRun <= %d and MaxRun >= %d ORDER BY Id"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}
	rows, err = db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()
	nPad := 0
	for rows.Next() {
		result := CalibPadEntry{}
		if err := rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		obj, err := set.Object(result.Quantity)
		if err != nil || !geo.ValidDetector(result.Detector) {
			continue
		}
		pads, ok := obj.Pad[result.Detector]
		if !ok {
			pads = defaultPadValues(result.Quantity, geo.NPads(result.Detector), obj.Det[result.Detector])
			obj.Pad[result.Detector] = pads
		}
		index := result.PadRow*NCol + result.PadCol
		if index < 0 || index >= len(pads) {
			continue
		}
		pads[index] = result.Value
		nPad++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading DB rows: %w", err)
	}

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Calibration of run %d: %d detector and %d pad values", runNumber, nDet, nPad)
		logger.Info(message, "database")
	}
	return set, nil
}

// defaultPadValues is the pad map that leaves the detector value unchanged.
func defaultPadValues(quantity string, nPads int, detValue float64) []float64 {
	pads := make([]float64, nPads)
	fill := 0.0
	switch quantity {
	case QuantityGain, QuantityVdrift:
		fill = 1.0
	case QuantityT0:
		fill = 0.0
	default:
		fill = detValue
	}
	for i := range pads {
		pads[i] = fill
	}
	return pads
}

// StoreCalibration writes a calibration set for the run range of pass in a
// single transaction.
func StoreCalibration(db *sqlx.DB, set *CalibrationSet, pass CalibrationPass) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	if err := storeCalibration(tx, set, pass); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing calibration pass %s: %w", pass.PassID, err)
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Calibration pass %s stored for runs %d-%d", pass.PassID, pass.MinRun, pass.MaxRun)
		logger.Info(message, "database")
	}
	return nil
}

func storeCalibration(tx *sqlx.Tx, set *CalibrationSet, pass CalibrationPass) error {
	_, err := tx.NamedExec(`INSERT INTO CalibPass (PassID, MinRun, MaxRun, CreatedAt, Comment)
		VALUES (:PassID, :MinRun, :MaxRun, :CreatedAt, :Comment)`, pass)
	if err != nil {
		return fmt.Errorf("error inserting calibration pass: %w", err)
	}

	for _, name := range Quantities {
		obj, err := set.Object(name)
		if err != nil {
			return err
		}
		for det := 0; det < NDet; det++ {
			entry := CalibDetEntry{
				PassID:   pass.PassID,
				MinRun:   pass.MinRun,
				MaxRun:   pass.MaxRun,
				Quantity: name,
				Detector: det,
				Value:    EncodeValue(name, obj.Det[det], obj.Fitted[det]),
			}
			_, err := tx.NamedExec(`INSERT INTO CalibDet (PassID, MinRun, MaxRun, Quantity, Detector, Value)
				VALUES (:PassID, :MinRun, :MaxRun, :Quantity, :Detector, :Value)`, entry)
			if err != nil {
				return fmt.Errorf("error inserting %s of detector %d: %w", name, det, err)
			}
		}

		for det, pads := range obj.Pad {
			entries := make([]CalibPadEntry, len(pads))
			for i, v := range pads {
				entries[i] = CalibPadEntry{
					PassID:   pass.PassID,
					MinRun:   pass.MinRun,
					MaxRun:   pass.MaxRun,
					Quantity: name,
					Detector: det,
					PadRow:   i / NCol,
					PadCol:   i % NCol,
					Value:    v,
				}
			}
			if len(entries) == 0 {
				continue
			}
			_, err := tx.NamedExec(`INSERT INTO CalibPad (PassID, MinRun, MaxRun, Quantity, Detector, PadRow, PadCol, Value)
				VALUES (:PassID, :MinRun, :MaxRun, :Quantity, :Detector, :PadRow, :PadCol, :Value)`, entries)
			if err != nil {
				return fmt.Errorf("error inserting %s pads of detector %d: %w", name, det, err)
			}
		}
	}
	return nil
}
