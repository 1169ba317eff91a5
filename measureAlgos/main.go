package main

import (
	"flag"
	"fmt"
	"os"
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

// Compares the clusterizer position methods and the HDF5 compression
// levels on the same sample of events.
func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	nEvents := flag.Int("events", 20, "Number of particle gun events when no input file is given")
	repeat := flag.Int("repeat", 3, "Writes per compression level")
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
	calib := trd.NewCalibrationSet(geo, configuration.Simulation)
	hits, err := readHits(configuration, geo, *nEvents)
	if err != nil {
		logger.Error(err.Error())
		return
	}
	logger.Info(fmt.Sprintf("Events read: %d", len(hits)), "main")

	var processed []*trd.EventType
	for _, method := range []struct {
		name string
		lut  bool
	}{
		{"center of gravity", false},
		{"look-up table", true},
	} {
		config := configuration
		config.Reconstruction.LUTOn = method.lut
		config.Reconstruction.FastClusterizer = false
		pipeline := trd.NewPipeline(geo, config, calib)

		start := time.Now()
		events := make([]*trd.EventType, 0, len(hits))
		nClusters := 0
		for _, h := range hits {
			event := &trd.EventType{RunNumber: h.RunNumber, EventID: h.EventID, Hits: h.Hits}
			if err := pipeline.ProcessEvents(event); err != nil {
				logger.Error(fmt.Errorf("error processing event %d: %w", event.EventID, err).Error())
				continue
			}
			nClusters += len(event.Clusters)
			events = append(events, event)
		}
		duration := time.Since(start)
		residuals := collectResiduals(events, configuration.NumWorkers)
		fmt.Printf("(%s) Time: %d ms, %d clusters, r-phi residual rms %.4f cm over %d clusters\n",
			method.name, duration.Milliseconds(), nClusters, rms(residuals), len(residuals))
		processed = events
	}

	if configuration.FileOut == "" {
		return
	}
	for level := 0; level < 10; level++ {
		for i := 0; i < max(*repeat, 1); i++ {
			config := configuration
			config.CompressionLevel = level
			trd.SetConfiguration(config)

			start := time.Now()
			if err := writeEvents(config.FileOut, processed); err != nil {
				logger.Error(err.Error())
				continue
			}
			duration := time.Since(start)
			fileInfo, err := os.Stat(config.FileOut)
			if err != nil {
				logger.Error(fmt.Sprintf("Error getting file info: %v", err))
				continue
			}
			fmt.Printf("(hdf5, comp %d) Time: %d ms, size %d bytes\n", level, duration.Milliseconds(), fileInfo.Size())
		}
	}
}

func readHits(config trd.Configuration, geo *trd.Geometry, nEvents int) ([]*trd.EventType, error) {
	source, err := cli.OpenEventSource(config, geo, nEvents)
	if err != nil {
		return nil, fmt.Errorf("error opening input: %w", err)
	}
	defer source.Close()
	var events []*trd.EventType
	for {
		event, ok := source.Next()
		if !ok {
			break
		}
		if !event.Error {
			events = append(events, event)
		}
	}
	return events, source.Err()
}

func writeEvents(filename string, events []*trd.EventType) (err error) {
	writer, err := trd.NewWriter(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for _, event := range events {
		if err := writer.WriteEvent(event); err != nil {
			return fmt.Errorf("error writing event %d: %w", event.EventID, err)
		}
	}
	return nil
}
