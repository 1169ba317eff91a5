package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/alice-trd/trd_go/internal/cli"
	trd "github.com/alice-trd/trd_go/pkg"
)

var (
	logger         cli.Logger
	VerbosityLevel int
)

func init() {
	logger = cli.NewLogger()
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	nEvents := flag.Int("events", 10, "Number of particle gun events when no input file is given")
	pileup := flag.Int("pileup", 0, "Number of extra events merged into each written event")
	flag.Parse()

	configuration, err := cli.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		return
	}
	trd.SetConfiguration(configuration)
	trd.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", *configFilename), "main")
		cli.PrintConfiguration(configuration, logger)
	}

	geo := trd.NewGeometry(configuration.Geometry)
	calib, err := loadCalibration(configuration, geo)
	if err != nil {
		logger.Error(fmt.Errorf("Error loading calibration: %w", err).Error())
		return
	}

	source, err := cli.OpenEventSource(configuration, geo, *nEvents)
	if err != nil {
		logger.Error(fmt.Errorf("Error opening input: %w", err).Error())
		return
	}
	defer source.Close()

	var writer *trd.Writer
	if configuration.WriteData {
		writer, err = trd.NewWriter(configuration.FileOut)
		if err != nil {
			logger.Error(fmt.Errorf("Error creating output file: %w", err).Error())
			return
		}
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error(err.Error())
			}
		}()
	}

	pipeline := trd.NewPipeline(geo, configuration, calib)
	start := time.Now()
	processed := 0
	for {
		events := readEvents(source, 1+*pileup)
		if len(events) == 0 {
			break
		}
		event := events[0]
		if event.Error {
			logger.Error(fmt.Sprintf("discarding event %d", event.EventID))
			continue
		}
		if err := pipeline.ProcessEvents(events...); err != nil {
			logger.Error(fmt.Errorf("error processing event %d: %w", event.EventID, err).Error())
			continue
		}
		if VerbosityLevel > 0 {
			message := fmt.Sprintf("Event %d: %d hits, %d detectors with digits, %d clusters",
				event.EventID, len(event.Hits), len(event.Digits), len(event.Clusters))
			logger.Info(message, "main")
		}
		if writer != nil {
			if err := writer.WriteEvent(event); err != nil {
				logger.Error(fmt.Errorf("error writing event %d: %w", event.EventID, err).Error())
			}
		}
		processed++
	}
	if err := source.Err(); err != nil {
		logger.Error(fmt.Errorf("error reading events: %w", err).Error())
	}

	duration := time.Since(start)
	logger.Info(fmt.Sprintf("Total events processed: %d in %d ms", processed, duration.Milliseconds()), "main")
}

// readEvents returns up to n events of the source.
func readEvents(source cli.EventSource, n int) []*trd.EventType {
	events := make([]*trd.EventType, 0, n)
	for len(events) < n {
		event, ok := source.Next()
		if !ok {
			break
		}
		events = append(events, event)
	}
	return events
}

// loadCalibration reads the constants of the run from the database, or
// returns the nominal ones when the database is disabled.
func loadCalibration(config trd.Configuration, geo *trd.Geometry) (*trd.CalibrationSet, error) {
	if config.NoDB {
		set := trd.NewCalibrationSet(geo, config.Simulation)
		set.RunNumber = config.RunNumber
		return set, nil
	}
	db, err := trd.OpenDatabase(config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()
	if err := trd.MigrateDatabase(db); err != nil {
		return nil, err
	}
	return trd.LoadCalibration(db, geo, config.Simulation, config.RunNumber)
}
