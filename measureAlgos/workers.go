package main

import (
	"fmt"
	"math"

	trd "github.com/alice-trd/trd_go/pkg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Tracklets with fewer clusters are not used for the residuals.
const minClusters = 6

type residualJob struct {
	EventID  int
	Clusters []trd.Cluster
}

type residualResult struct {
	EventID   int
	Residuals []float64
	Err       error
}

func worker(id int, jobs <-chan residualJob, results chan<- residualResult) {
	for job := range jobs {
		if VerbosityLevel > 2 {
			logger.Info(fmt.Sprintf("Worker %d processing event %d", id, job.EventID), "workers")
		}
		results <- process(id, job)
	}
}

func process(id int, job residualJob) (result residualResult) {
	result.EventID = job.EventID
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("worker %d recovered from panic on event %d: %v", id, job.EventID, r)
		}
	}()
	result.Residuals = trackletResiduals(job.Clusters)
	return result
}

type trackletKey struct {
	detector int
	track    int32
}

// trackletResiduals returns the distances in r-phi of the clusters to the
// straight line through the clusters of their tracklet.
func trackletResiduals(clusters []trd.Cluster) []float64 {
	times := make(map[trackletKey][]float64)
	ys := make(map[trackletKey][]float64)
	for _, cl := range clusters {
		if cl.Tracks[0] < 0 {
			continue
		}
		key := trackletKey{cl.Detector, cl.Tracks[0]}
		times[key] = append(times[key], cl.Time)
		ys[key] = append(ys[key], cl.Y)
	}
	var residuals []float64
	for key, t := range times {
		if len(t) < minClusters || stat.Variance(t, nil) == 0 {
			continue
		}
		y := ys[key]
		a, b := stat.LinearRegression(t, y, nil, false)
		for i := range t {
			residuals = append(residuals, y[i]-(a+b*t[i]))
		}
	}
	return residuals
}

// collectResiduals computes the residuals of all events with a pool of
// workers.
func collectResiduals(events []*trd.EventType, nWorkers int) []float64 {
	jobs := make(chan residualJob, len(events))
	results := make(chan residualResult, len(events))
	for w := 1; w <= max(nWorkers, 1); w++ {
		go worker(w, jobs, results)
	}
	for _, event := range events {
		jobs <- residualJob{EventID: event.EventID, Clusters: event.Clusters}
	}
	close(jobs)

	var all []float64
	for range events {
		r := <-results
		if r.Err != nil {
			logger.Error(r.Err.Error())
			continue
		}
		all = append(all, r.Residuals...)
	}
	return all
}

// rms of values around zero.
func rms(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return math.Sqrt(floats.Dot(values, values) / float64(len(values)))
}
