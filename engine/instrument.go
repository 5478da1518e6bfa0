package engine

import (
	"context"
	"time"

	"github.com/use-agent/xfeed/metrics"
)

type instrumented struct {
	Engine
}

// Instrument wraps e so every Fetch is counted and timed under e's name.
func Instrument(e Engine) Engine {
	return instrumented{Engine: e}
}

func (i instrumented) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	start := time.Now()
	result, err := i.Engine.Fetch(ctx, req)
	metrics.ObserveFetch(i.Name(), time.Since(start).Seconds(), err)
	return result, err
}
