package trd

import (
	"cmp"
	"fmt"
	"math/rand/v2"

	"golang.org/x/exp/slices"
)

// DetectorJob holds the hits of one detector. Every element of Hits comes
// from a different event; they are added as summable digits before the
// conversion to ADC counts.
type DetectorJob struct {
	EventID  int
	Detector int
	Hits     [][]Hit
}

type DetectorResult struct {
	EventID  int
	Detector int
	Digits   *DetectorDigits
	Clusters []Cluster
	Err      error
}

// detectorWorker owns everything that caches per drift velocity, so
// detectors can be processed in parallel.
type detectorWorker struct {
	id          int
	seed        uint64
	source      *rand.PCG
	digitizer   *Digitizer
	clusterizer *Clusterizer
	fast        *FastClusterizer
	fastMode    bool
}

func newDetectorWorker(id int, geo *Geometry, config Configuration, calib Calibration) *detectorWorker {
	source := rand.NewPCG(config.Seed, uint64(id))
	return &detectorWorker{
		id:          id,
		seed:        config.Seed,
		source:      source,
		digitizer:   NewDigitizer(geo, config.Simulation, calib, source),
		clusterizer: NewClusterizer(geo, config.Reconstruction, config.Simulation, calib),
		fast:        NewFastClusterizer(geo, config.Reconstruction, config.Simulation, calib, source),
		fastMode:    config.Reconstruction.FastClusterizer,
	}
}

func worker(w *detectorWorker, jobs <-chan DetectorJob, results chan<- DetectorResult) {
	for job := range jobs {
		if configuration.Verbosity > 2 {
			message := fmt.Sprintf("Worker %d processing detector %d of event %d", w.id, job.Detector, job.EventID)
			logger.Info(message, "workers")
		}
		results <- w.process(job)
	}
}

func (w *detectorWorker) process(job DetectorJob) (result DetectorResult) {
	result = DetectorResult{EventID: job.EventID, Detector: job.Detector}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("worker %d recovered from panic in detector %d: %v", w.id, job.Detector, r)
		}
	}()

	// The random sequence depends only on the event and the detector.
	w.source.Seed(w.seed, uint64(job.EventID)<<16|uint64(job.Detector))

	if w.fastMode {
		var hits []Hit
		for _, h := range job.Hits {
			hits = append(hits, h...)
		}
		result.Clusters, result.Err = w.fast.MakeClusters(job.Detector, hits)
		return result
	}

	for _, hits := range job.Hits {
		signals, err := w.digitizer.MakeSignals(job.Detector, hits)
		if err != nil {
			result.Err = err
			return result
		}
		w.digitizer.AddSDigits(signals)
	}
	digits, err := w.digitizer.SDigits2Digits()
	if err != nil {
		result.Err = err
		return result
	}
	result.Digits = digits[job.Detector]
	if result.Digits == nil {
		return result
	}
	result.Clusters, result.Err = w.clusterizer.MakeClusters(result.Digits)
	return result
}

// Pipeline runs the digitizer and the clusterizer over the detectors of
// an event with a pool of workers.
type Pipeline struct {
	geo     *Geometry
	workers []*detectorWorker
}

func NewPipeline(geo *Geometry, config Configuration, calib Calibration) *Pipeline {
	n := config.NumWorkers
	if n < 1 {
		n = 1
	}
	p := &Pipeline{geo: geo}
	for id := 1; id <= n; id++ {
		p.workers = append(p.workers, newDetectorWorker(id, geo, config, calib))
	}
	return p
}

// groupHits sorts the hits of the events by detector. Hits without a
// detector are located from their position; hits outside every active
// chamber are dropped.
func (p *Pipeline) groupHits(events []*EventType) map[int][][]Hit {
	byDetector := make(map[int][][]Hit)
	for i, event := range events {
		for _, hit := range event.Hits {
			if hit.Detector < 0 {
				hit.Detector = p.geo.FindDetector([3]float64{hit.X, hit.Y, hit.Z})
			}
			if err := p.geo.CheckDetector(hit.Detector); err != nil {
				if configuration.Verbosity > 2 {
					logger.Info(fmt.Sprintf("Skipping hit of track %d: %v", hit.Track, err), "workers")
				}
				continue
			}
			sets := byDetector[hit.Detector]
			for len(sets) <= i {
				sets = append(sets, nil)
			}
			sets[i] = append(sets[i], hit)
			byDetector[hit.Detector] = sets
		}
	}
	return byDetector
}

// ProcessEvents digitizes the hits of events as one piled-up event and
// stores digits and clusters in the first event. A failing detector is
// logged and skipped.
func (p *Pipeline) ProcessEvents(events ...*EventType) error {
	if len(events) == 0 {
		return fmt.Errorf("no events to process")
	}
	target := events[0]
	byDetector := p.groupHits(events)

	jobs := make(chan DetectorJob, len(byDetector))
	results := make(chan DetectorResult, len(byDetector))
	for _, w := range p.workers {
		go worker(w, jobs, results)
	}
	for det, hits := range byDetector {
		jobs <- DetectorJob{EventID: target.EventID, Detector: det, Hits: hits}
	}
	close(jobs)

	collected := make([]DetectorResult, 0, len(byDetector))
	for range byDetector {
		collected = append(collected, <-results)
	}
	slices.SortFunc(collected, func(a, b DetectorResult) int { return cmp.Compare(a.Detector, b.Detector) })

	target.Digits = make(map[int]*DetectorDigits)
	target.Clusters = target.Clusters[:0]
	failed := 0
	for _, r := range collected {
		if r.Err != nil {
			failed++
			logger.Error(fmt.Sprintf("Event %d detector %d: %v", r.EventID, r.Detector, r.Err))
			continue
		}
		if r.Digits != nil {
			target.Digits[r.Detector] = r.Digits
		}
		target.Clusters = append(target.Clusters, r.Clusters...)
	}
	if configuration.Verbosity > 1 {
		message := fmt.Sprintf("Event %d: %d detectors, %d failed, %d clusters", target.EventID, len(collected), failed, len(target.Clusters))
		logger.Info(message, "workers")
	}
	return nil
}
