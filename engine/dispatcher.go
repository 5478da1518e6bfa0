package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher races several engines with staged escalation: engines[i]
// starts delays[i] after the race begins, the first success wins and the
// rest are cancelled. A Dispatcher is itself an Engine named "auto".
type Dispatcher struct {
	engines []Engine
	delays  []time.Duration
	memory  *Memory
}

// NewDispatcher creates a Dispatcher. Missing delays default to 0; memory
// may be nil.
func NewDispatcher(engines []Engine, delays []time.Duration, memory *Memory) *Dispatcher {
	d := make([]time.Duration, len(engines))
	copy(d, delays)
	return &Dispatcher{
		engines: engines,
		delays:  d,
		memory:  memory,
	}
}

func (d *Dispatcher) Name() string { return "auto" }

// Fetch tries the engine remembered for the host first, then falls back
// to the full race.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}
	host := hostOf(req.URL)

	if d.memory != nil {
		if remembered := d.memory.Get(host); remembered != "" {
			for _, eng := range d.engines {
				if eng.Name() != remembered {
					continue
				}
				slog.Debug("engine memory hit", "host", host, "engine", remembered)
				result, err := eng.Fetch(ctx, req)
				if err == nil {
					return result, nil
				}
				if ctx.Err() != nil {
					return nil, err
				}
				slog.Info("remembered engine failed, running full race",
					"host", host, "engine", remembered, "error", err)
				d.memory.Delete(host)
				break
			}
		}
	}

	return d.race(ctx, req, host)
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, host string) (*FetchResult, error) {
	type raceResult struct {
		result *FetchResult
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-timer.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}

			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{result: result, err: err}
		}(eng, d.delays[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		raceCancel()
		slog.Info("engine won race", "engine", rr.result.EngineName, "url", req.URL)
		if d.memory != nil {
			d.memory.Set(host, rr.result.EngineName)
		}
		return rr.result, nil
	}

	if lastErr == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

// hostOf parses the hostname from a URL string.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
