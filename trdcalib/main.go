package main

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/alice-trd/trd_go/internal/cli"
	trd "github.com/alice-trd/trd_go/pkg"
	"github.com/alice-trd/trd_go/pkg/calibra"
	sqlx "github.com/jmoiron/sqlx"
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
	nEvents := flag.Int("events", 100, "Number of particle gun events when no input file is given")
	comment := flag.String("comment", "", "Comment stored with the calibration pass")
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

	start := time.Now()
	if err := run(configuration, *nEvents, *comment); err != nil {
		logger.Error(err.Error())
		return
	}
	logger.Info(fmt.Sprintf("Total time: %d ms", time.Since(start).Milliseconds()), "main")
}

func run(config trd.Configuration, nEvents int, comment string) error {
	geo := trd.NewGeometry(config.Geometry)

	db, err := openDatabase(config)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	reference := trd.NewCalibrationSet(geo, config.Simulation)
	reference.RunNumber = config.RunNumber
	if db != nil {
		if reference, err = trd.LoadCalibration(db, geo, config.Simulation, config.RunNumber); err != nil {
			return fmt.Errorf("error loading reference calibration: %w", err)
		}
	}

	ctx := calibra.NewContext(geo, config, reference)
	ctx.SetLogger(logger)
	filler, err := fill(config, geo, reference, ctx, nEvents)
	if err != nil {
		return err
	}
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Tracklets used: %d", filler.Tracklets()), "main")
	}

	analyses, err := analyse(ctx, filler)
	if err != nil {
		return err
	}
	if dir := config.Calibration.PlotDir; dir != "" {
		for _, a := range analyses {
			if err := a.Plot(dir); err != nil {
				logger.Error(fmt.Errorf("error plotting %s: %w", a.Name(), err).Error())
			}
		}
	}

	result := trd.NewCalibrationSet(geo, config.Simulation)
	result.RunNumber = config.RunNumber
	for _, name := range trd.Quantities {
		obj, err := reference.Object(name)
		if err != nil {
			return err
		}
		if err := result.SetObject(obj); err != nil {
			return err
		}
	}
	if err := calibra.ApplyTo(result, ctx.Objects(analyses...)); err != nil {
		return fmt.Errorf("error applying calibration objects: %w", err)
	}

	pass := trd.NewCalibrationPass(config.Calibration.MinRun, config.Calibration.MaxRun, comment)
	if db != nil {
		if err := trd.StoreCalibration(db, result, pass); err != nil {
			return err
		}
	}
	if config.WriteData && config.FileOut != "" {
		writer, err := trd.NewWriter(config.FileOut)
		if err != nil {
			return err
		}
		err = writer.WriteCalibration(result, pass.PassID)
		return errors.Join(err, writer.Close())
	}
	return nil
}

func openDatabase(config trd.Configuration) (*sqlx.DB, error) {
	if config.NoDB {
		return nil, nil
	}
	db, err := trd.OpenDatabase(config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := trd.MigrateDatabase(db); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return db, nil
}

// fill simulates and reconstructs the events and accumulates the
// calibration histograms. The clusters keep the Lorentz shift so that the
// linear fitter sees it.
func fill(config trd.Configuration, geo *trd.Geometry, reference trd.Calibration, ctx *calibra.Context, nEvents int) (*calibra.Filler, error) {
	source, err := cli.OpenEventSource(config, geo, nEvents)
	if err != nil {
		return nil, fmt.Errorf("error opening input: %w", err)
	}
	defer source.Close()

	reco := config
	reco.Reconstruction.ExBCorrection = false
	pipeline := trd.NewPipeline(geo, reco, reference)
	filler := ctx.NewFiller()

	processed := 0
	for {
		event, ok := source.Next()
		if !ok {
			break
		}
		if event.Error {
			logger.Error(fmt.Sprintf("discarding event %d", event.EventID))
			continue
		}
		if err := pipeline.ProcessEvents(event); err != nil {
			logger.Error(fmt.Errorf("error processing event %d: %w", event.EventID, err).Error())
			continue
		}
		filler.FillEvent(event)
		processed++
		if VerbosityLevel > 1 {
			logger.Info(fmt.Sprintf("Event %d: %d clusters", event.EventID, len(event.Clusters)), "main")
		}
	}
	if err := source.Err(); err != nil {
		return nil, fmt.Errorf("error reading events: %w", err)
	}
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Total events processed: %d", processed), "main")
	}
	return filler, nil
}

// analyse fits the three kinds of histograms. The linear fitter comes
// first so that the drift velocity of the pulse height analysis takes
// precedence and only its Lorentz angle is kept.
func analyse(ctx *calibra.Context, filler *calibra.Filler) ([]*calibra.Analysis, error) {
	var analyses []*calibra.Analysis
	if filler.Linear != nil {
		a, err := ctx.AnalyseLinearFitter(filler.Linear)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	steps := []struct {
		analyse func(*calibra.Histograms) (*calibra.Analysis, error)
		h       *calibra.Histograms
	}{
		{ctx.AnalyseCH, filler.CH},
		{ctx.AnalysePH, filler.PH},
		{ctx.AnalysePRF, filler.PRF},
	}
	for _, step := range steps {
		a, err := step.analyse(step.h)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
		if VerbosityLevel > 0 {
			logger.Info(a.String(), "calibra")
		}
	}
	return analyses, nil
}
