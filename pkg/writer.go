package trd

import (
	"cmp"
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
	"golang.org/x/exp/slices"
)

type Writer struct {
	File          *hdf5.File
	Filename      string
	FirstEvt      bool
	RunGroup      *hdf5.Group
	DigitsGroup   *hdf5.Group
	ClustersGroup *hdf5.Group
	CalibGroup    *hdf5.Group
	events        *table
	runInfo       *table
	digits        *table
	clusters      *table
	calibDet      *table
	calibPad      *table
}

// Rows returns the rows written to the events, digits, clusters,
// calibration detector and calibration pad tables.
func (w *Writer) Rows() (events, digits, clusters, calibDet, calibPad int) {
	return w.events.Rows(), w.digits.Rows(), w.clusters.Rows(), w.calibDet.Rows(), w.calibPad.Rows()
}

func NewWriter(filename string) (*Writer, error) {
	writer := &Writer{Filename: filename}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Creating file: %s", filename), "hdf5writer")
	}

	var err error
	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	groups := []struct {
		target **hdf5.Group
		name   string
	}{
		{&writer.RunGroup, "Run"},
		{&writer.DigitsGroup, "Digits"},
		{&writer.ClustersGroup, "Clusters"},
		{&writer.CalibGroup, "Calib"},
	}
	for _, g := range groups {
		if *g.target, err = createGroup(writer.File, g.name); err != nil {
			return nil, errors.Join(err, writer.Close())
		}
	}
	// Chunks follow the expected row counts: digits and pads dominate.
	tables := []struct {
		target   **table
		group    *hdf5.Group
		name     string
		datatype interface{}
		chunk    uint
	}{
		{&writer.events, writer.RunGroup, "events", EventDataHDF5{}, 1024},
		{&writer.runInfo, writer.RunGroup, "runInfo", RunInfoHDF5{}, 8},
		{&writer.digits, writer.DigitsGroup, "digits", DigitHDF5{}, 32768},
		{&writer.clusters, writer.ClustersGroup, "clusters", ClusterHDF5{}, 8192},
		{&writer.calibDet, writer.CalibGroup, "detectors", CalibDetHDF5{}, NDet},
		{&writer.calibPad, writer.CalibGroup, "pads", CalibPadHDF5{}, 32768},
	}
	for _, t := range tables {
		if *t.target, err = createTable(t.group, t.name, t.datatype, t.chunk); err != nil {
			return nil, errors.Join(err, writer.Close())
		}
	}
	return writer, nil
}

// WriteRunInfo stores the run number and the calibration pass id once.
func (w *Writer) WriteRunInfo(runNumber int, passID string) error {
	if w.FirstEvt {
		return nil
	}
	w.FirstEvt = true
	return appendRows(w.runInfo, []RunInfoHDF5{{
		run_number: int32(runNumber),
		pass_id:    convertToHdf5String(passID),
	}})
}

func (w *Writer) WriteEvent(event *EventType) error {
	if err := w.WriteRunInfo(event.RunNumber, ""); err != nil {
		return err
	}

	nDigits := 0
	var errs []error
	if configuration.WriteDigits {
		dets := make([]int, 0, len(event.Digits))
		for det := range event.Digits {
			dets = append(dets, det)
		}
		slices.Sort(dets)
		for _, det := range dets {
			rows := digitsToHDF5(event.EventID, event.Digits[det])
			if err := appendRows(w.digits, rows); err != nil {
				errs = append(errs, fmt.Errorf("writing digits of detector %d: %w", det, err))
				continue
			}
			nDigits += len(rows)
		}
	}

	if configuration.WriteClusters {
		rows := clustersToHDF5(event.EventID, event.Clusters)
		if err := appendRows(w.clusters, rows); err != nil {
			errs = append(errs, fmt.Errorf("writing clusters: %w", err))
		}
	}

	evtData := EventDataHDF5{
		evt_number: int32(event.EventID),
		n_hits:     int32(len(event.Hits)),
		n_digits:   int32(nDigits),
		n_clusters: int32(len(event.Clusters)),
	}
	if err := appendRows(w.events, []EventDataHDF5{evtData}); err != nil {
		errs = append(errs, fmt.Errorf("writing event %d: %w", event.EventID, err))
	}
	return errors.Join(errs...)
}

func digitsToHDF5(eventID int, digits *DetectorDigits) []DigitHDF5 {
	list := digits.List()
	// The array MUST be allocated at creation, if not, HDF5 will panic
	rows := make([]DigitHDF5, len(list))
	for i, d := range list {
		rows[i] = DigitHDF5{
			evt_number: int32(eventID),
			detector:   int16(d.Detector),
			row:        int16(d.Row),
			col:        int16(d.Col),
			time:       int16(d.Time),
			amplitude:  d.Amplitude,
			track0:     d.Tracks[0],
			track1:     d.Tracks[1],
			track2:     d.Tracks[2],
		}
	}
	return rows
}

func clustersToHDF5(eventID int, clusters []Cluster) []ClusterHDF5 {
	rows := make([]ClusterHDF5, len(clusters))
	for i, c := range clusters {
		unfolded := int8(0)
		if c.Unfolded {
			unfolded = 1
		}
		rows[i] = ClusterHDF5{
			evt_number: int32(eventID),
			detector:   int16(c.Detector),
			row:        int16(c.Row),
			col:        int16(c.Col),
			time:       int16(c.TimeBin),
			y:          float32(c.Y),
			z:          float32(c.Z),
			t:          float32(c.Time),
			q:          float32(c.Q),
			sigma_y2:   float32(c.Sigma2[0]),
			sigma_z2:   float32(c.Sigma2[1]),
			ctype:      int8(c.Type),
			unfolded:   unfolded,
			track0:     c.Tracks[0],
			track1:     c.Tracks[1],
			track2:     c.Tracks[2],
		}
	}
	return rows
}

// WriteCalibration stores the detector and pad values of every quantity of
// the set. Values that were not fitted are stored in their encoded form.
func (w *Writer) WriteCalibration(set *CalibrationSet, passID string) error {
	if err := w.WriteRunInfo(set.RunNumber, passID); err != nil {
		return err
	}
	var errs []error
	for _, name := range Quantities {
		obj, err := set.Object(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		detRows := make([]CalibDetHDF5, NDet)
		for det := 0; det < NDet; det++ {
			fitted := int8(0)
			if obj.Fitted[det] {
				fitted = 1
			}
			detRows[det] = CalibDetHDF5{
				quantity: convertToHdf5String(name),
				detector: int16(det),
				value:    float32(EncodeValue(name, obj.Det[det], obj.Fitted[det])),
				fitted:   fitted,
			}
		}
		if err := appendRows(w.calibDet, detRows); err != nil {
			errs = append(errs, fmt.Errorf("writing %s detector values: %w", name, err))
		}
		if err := appendRows(w.calibPad, calibPadsToHDF5(name, obj)); err != nil {
			errs = append(errs, fmt.Errorf("writing %s pad values: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func calibPadsToHDF5(name string, obj *CalibrationObject) []CalibPadHDF5 {
	dets := make([]int, 0, len(obj.Pad))
	n := 0
	for det, pads := range obj.Pad {
		dets = append(dets, det)
		n += len(pads)
	}
	slices.SortFunc(dets, func(a, b int) int { return cmp.Compare(a, b) })
	rows := make([]CalibPadHDF5, 0, n)
	for _, det := range dets {
		for i, v := range obj.Pad[det] {
			rows = append(rows, CalibPadHDF5{
				quantity: convertToHdf5String(name),
				detector: int16(det),
				row:      int16(i / NCol),
				col:      int16(i % NCol),
				value:    float32(v),
			})
		}
	}
	return rows
}

func (w *Writer) Close() error {
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Closing file %s", w.Filename), "hdf5writer")
	}
	var errs []error

	for _, t := range []*table{w.events, w.runInfo, w.digits, w.clusters, w.calibDet, w.calibPad} {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	groups := []struct {
		group *hdf5.Group
		name  string
	}{
		{w.RunGroup, "run group"},
		{w.DigitsGroup, "digits group"},
		{w.ClustersGroup, "clusters group"},
		{w.CalibGroup, "calibration group"},
	}
	for _, g := range groups {
		if g.group == nil {
			continue
		}
		if err := g.group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", g.name, err))
		}
	}
	if w.File != nil {
		if err := w.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}
	return errors.Join(errs...)
}
