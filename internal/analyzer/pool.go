package analyzer

import (
	"context"
	"runtime"
	"sync"
)

// Item is one photo submitted to a Pool.
type Item struct {
	Name string
	Data []byte
}

// Result pairs an Item with the outcome of its analysis.
type Result struct {
	Name   string
	Report *Report
	Err    error
}

// Pool analyzes photos concurrently with a fixed number of workers.
type Pool struct {
	analyzer *Analyzer
	workers  int
}

// NewPool creates a Pool. workers <= 0 means one worker per CPU.
func NewPool(a *Analyzer, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{analyzer: a, workers: workers}
}

// AnalyzeAll analyzes every item and returns the results in input order.
// When ctx is cancelled no further items are dispatched; those get ctx.Err().
func (p *Pool) AnalyzeAll(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))
	if len(items) == 0 {
		return results
	}

	workers := p.workers
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report, err := p.analyzer.Analyze(items[i].Data)
				results[i] = Result{Name: items[i].Name, Report: report, Err: err}
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	for i := dispatched; i < len(items); i++ {
		results[i] = Result{Name: items[i].Name, Err: ctx.Err()}
	}

	return results
}
