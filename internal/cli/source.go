package cli

import (
	"math/rand/v2"

	trd "github.com/alice-trd/trd_go/pkg"
)

// EventSource yields events carrying their hits.
type EventSource interface {
	Next() (*trd.EventType, bool)
	Err() error
	Close() error
}

// OpenEventSource reads the LCIO file of the configuration, or shoots
// events with the particle gun when no input file is given. Skip and
// MaxEvents are applied in both cases; the gun stops after gunEvents.
func OpenEventSource(config trd.Configuration, geo *trd.Geometry, gunEvents int) (EventSource, error) {
	var src EventSource
	if config.FileIn != "" {
		reader, err := trd.NewHitReader(config.FileIn, config.HitCollection, config.Simulation.Wion)
		if err != nil {
			return nil, err
		}
		src = reader
	} else {
		src = &gunSource{
			gun:       trd.NewParticleGun(geo, config.Gun, config.Simulation, rand.NewPCG(config.Seed, 0)),
			runNumber: config.RunNumber,
			events:    gunEvents,
		}
	}
	return &limitedSource{EventSource: src, skip: config.Skip, max: config.MaxEvents}, nil
}

type gunSource struct {
	gun       *trd.ParticleGun
	runNumber int
	events    int
	next      int
}

func (g *gunSource) Next() (*trd.EventType, bool) {
	if g.next >= g.events {
		return nil, false
	}
	event := &trd.EventType{
		RunNumber: g.runNumber,
		EventID:   g.next,
		Hits:      g.gun.Generate(),
	}
	g.next++
	return event, true
}

func (g *gunSource) Err() error   { return nil }
func (g *gunSource) Close() error { return nil }

type limitedSource struct {
	EventSource
	skip int
	max  int
	read int
}

func (l *limitedSource) Next() (*trd.EventType, bool) {
	for {
		if l.read >= l.max {
			return nil, false
		}
		event, ok := l.EventSource.Next()
		if !ok {
			return nil, false
		}
		l.read++
		if l.read > l.skip {
			return event, true
		}
	}
}
