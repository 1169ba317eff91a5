package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	trd "github.com/alice-trd/trd_go/pkg"
	"gopkg.in/yaml.v3"
)

// LoadConfiguration returns the default configuration overlaid with the
// settings of filename. Files ending in .yaml or .yml are read as YAML,
// anything else as JSON. An empty filename gives the defaults.
func LoadConfiguration(filename string) (trd.Configuration, error) {
	config := trd.DefaultConfiguration()
	if filename == "" {
		return config, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return config, nil
}

func PrintConfiguration(config trd.Configuration, logger trd.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("Hit collection: %s", config.HitCollection), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Seed: %d", config.Seed), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	if config.DBDriver == "sqlite" {
		logger.Info(fmt.Sprintf("DB path: %s", config.DBPath), "config")
	} else {
		logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
		logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	}
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Write data: %t", config.WriteData), "config")
	logger.Info(fmt.Sprintf("Write digits: %t", config.WriteDigits), "config")
	logger.Info(fmt.Sprintf("Write clusters: %t", config.WriteClusters), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Time bins: %d", config.Geometry.NTimeBins), "config")
	logger.Info(fmt.Sprintf("Drift velocity: %g cm/us", config.Simulation.DriftVelocity), "config")
	logger.Info(fmt.Sprintf("Field: %g T", config.Simulation.Field), "config")
	logger.Info(fmt.Sprintf("Fast clusterizer: %t", config.Reconstruction.FastClusterizer), "config")
	logger.Info(fmt.Sprintf("LUT: %t", config.Reconstruction.LUTOn), "config")
	logger.Info(fmt.Sprintf("ExB correction: %t", config.Reconstruction.ExBCorrection), "config")

	calib := config.Calibration
	logger.Info(fmt.Sprintf("Calibration modes: %s %s %s", calib.ModeCH, calib.ModePH, calib.ModePRF), "config")
	logger.Info(fmt.Sprintf("Calibration methods: CH %s, PH %s, PRF %s", calib.FitCHMethod, calib.FitPHMethod, calib.FitPRFMethod), "config")
	logger.Info(fmt.Sprintf("Minimum entries: %d", calib.MinEntries), "config")
	logger.Info(fmt.Sprintf("Detectors: %d-%d", calib.DetMin, calib.DetMax), "config")
	logger.Info(fmt.Sprintf("Linear vdrift fitter: %t", calib.LinearFitVdrift), "config")
}
