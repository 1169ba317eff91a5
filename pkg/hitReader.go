package trd

import (
	"errors"
	"fmt"
	"io"

	"go-hep.org/x/hep/lcio"
)

// Hits are stored as LCIO SimTrackerHits: CellID0 packs the detector (low
// 10 bits) and the track, EDep is the deposited energy in GeV, Time is in ns
// and positions are in cm.
const cellIDDetectorBits = 10

func encodeCellID(det, track int) int32 {
	return int32(track<<cellIDDetectorBits | (det & (1<<cellIDDetectorBits - 1)))
}

func decodeCellID(cellID int32) (int, int) {
	det := int(cellID) & (1<<cellIDDetectorBits - 1)
	track := int(cellID) >> cellIDDetectorBits
	return det, track
}

// HitReader reads the TRD hits of the events of an LCIO file.
type HitReader struct {
	reader     *lcio.Reader
	collection string
	wion       float64
}

func NewHitReader(filename string, collection string, wion float64) (*HitReader, error) {
	r, err := lcio.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	return &HitReader{reader: r, collection: collection, wion: wion}, nil
}

// Next returns the next event, false at the end of the file.
func (h *HitReader) Next() (*EventType, bool) {
	if !h.reader.Next() {
		return nil, false
	}
	evt := h.reader.Event()
	event := &EventType{
		RunNumber: int(evt.RunNumber),
		EventID:   int(evt.EventNumber),
	}
	if !evt.Has(h.collection) {
		return event, true
	}
	hits, ok := evt.Get(h.collection).(*lcio.SimTrackerHitContainer)
	if !ok {
		logger.Error(fmt.Sprintf("Event %d: collection %s is not a SimTrackerHit collection", event.EventID, h.collection))
		event.Error = true
		return event, true
	}
	event.Hits = make([]Hit, 0, len(hits.Hits))
	for _, sim := range hits.Hits {
		det, track := decodeCellID(sim.CellID0)
		event.Hits = append(event.Hits, Hit{
			Detector: det,
			Track:    track,
			X:        sim.Pos[0],
			Y:        sim.Pos[1],
			Z:        sim.Pos[2],
			Q:        float64(sim.EDep) * 1e9 / h.wion,
			Time:     float64(sim.Time) / 1000.0,
		})
	}
	return event, true
}

// Err returns the error that stopped the iteration, if any.
func (h *HitReader) Err() error {
	err := h.reader.Err()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *HitReader) Close() error {
	return h.reader.Close()
}

// HitWriter stores generated hits in an LCIO file.
type HitWriter struct {
	writer     *lcio.Writer
	collection string
	wion       float64
}

func NewHitWriter(filename string, collection string, wion float64) (*HitWriter, error) {
	w, err := lcio.Create(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	return &HitWriter{writer: w, collection: collection, wion: wion}, nil
}

func (h *HitWriter) WriteEvent(event *EventType) error {
	hits := lcio.SimTrackerHitContainer{
		Hits: make([]lcio.SimTrackerHit, len(event.Hits)),
	}
	for i, hit := range event.Hits {
		hits.Hits[i] = lcio.SimTrackerHit{
			CellID0: encodeCellID(hit.Detector, hit.Track),
			Pos:     [3]float64{hit.X, hit.Y, hit.Z},
			EDep:    float32(hit.Q * h.wion * 1e-9),
			Time:    float32(hit.Time * 1000.0),
		}
	}
	evt := lcio.Event{
		RunNumber:   int32(event.RunNumber),
		EventNumber: int32(event.EventID),
		Detector:    "TRD",
	}
	evt.Add(h.collection, &hits)
	if err := h.writer.WriteEvent(&evt); err != nil {
		return fmt.Errorf("writing event %d: %w", event.EventID, err)
	}
	return nil
}

func (h *HitWriter) Close() error {
	return h.writer.Close()
}
