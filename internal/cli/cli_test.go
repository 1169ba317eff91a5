package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	trd "github.com/alice-trd/trd_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigurationDefaults(t *testing.T) {
	config, err := LoadConfiguration("")
	require.NoError(t, err)
	assert.Equal(t, trd.DefaultConfiguration().Calibration, config.Calibration)

	_, err = LoadConfiguration(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigurationFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"config.json": `{"file_out": "out.h5", "num_workers": 4, "calibration": {"fit_ch_method": "bisch"}}`,
		"config.yaml": "file_out: out.h5\nnum_workers: 4\ncalibration:\n  fit_ch_method: bisch\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			config, err := LoadConfiguration(path)
			require.NoError(t, err)
			assert.Equal(t, "out.h5", config.FileOut)
			assert.Equal(t, 4, config.NumWorkers)
			assert.Equal(t, "bisch", config.Calibration.FitCHMethod)
			// Untouched settings keep their defaults.
			assert.Equal(t, "slope", config.Calibration.FitPHMethod)
			assert.Equal(t, 30, config.Geometry.NTimeBins)
		})
	}

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err := LoadConfiguration(bad)
	assert.Error(t, err)
}

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil))
	log.Info("Closing file out.h5", "module", "hdf5writer")
	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "[hdf5writer] Closing file out.h5\n"), line)
	assert.True(t, strings.HasPrefix(line, "["), line)
}

func TestGunSourceLimits(t *testing.T) {
	config := trd.DefaultConfiguration()
	config.Gun.Tracks = 1
	config.Skip = 2
	config.MaxEvents = 5
	config.RunNumber = 7
	geo := trd.NewGeometry(config.Geometry)

	src, err := OpenEventSource(config, geo, 10)
	require.NoError(t, err)
	defer src.Close()

	var ids []int
	for {
		event, ok := src.Next()
		if !ok {
			break
		}
		assert.Equal(t, 7, event.RunNumber)
		ids = append(ids, event.EventID)
	}
	require.NoError(t, src.Err())
	assert.Equal(t, []int{2, 3, 4}, ids)
}

func TestOpenEventSourceMissingFile(t *testing.T) {
	config := trd.DefaultConfiguration()
	config.FileIn = filepath.Join(t.TempDir(), "missing.slcio")
	_, err := OpenEventSource(config, trd.NewGeometry(config.Geometry), 1)
	var openErr *trd.ErrOpenFile
	assert.ErrorAs(t, err, &openErr)
}

func TestHandlerBoundAttrsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.With("module", "calibra").Warn("no pad grouping", "kind", "CH")
	assert.True(t, strings.HasSuffix(buf.String(), " [WARN] [calibra] [CH] no pad grouping\n"), buf.String())
}
