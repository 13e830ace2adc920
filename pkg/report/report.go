// Package report turns a `go test -json` event stream into a per-run
// summary and writes it as markdown, HTML or JSON.
package report

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kidandcat/pomkit/pkg/parser"
)

type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// TestResult is the outcome of one test or subtest.
type TestResult struct {
	Package  string        `json:"package"`
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
}

func (r TestResult) Passed() bool {
	return r.Status != StatusFail
}

// PackageResult is the outcome of a whole package, including failures that
// happen outside any test such as build errors or a panicking TestMain.
type PackageResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
}

// Summary is everything a report file contains.
type Summary struct {
	RunID    string          `json:"runId"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Tests    []TestResult    `json:"tests"`
	Packages []PackageResult `json:"packages"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Skipped  int             `json:"skipped"`
}

// OK reports whether no test and no package failed.
func (s Summary) OK() bool {
	if s.Failed > 0 {
		return false
	}
	for _, p := range s.Packages {
		if p.Status == StatusFail {
			return false
		}
	}
	return true
}

func (s Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

type testKey struct {
	pkg, name string
}

type pending struct {
	result TestResult
	output strings.Builder
}

// Collector aggregates events into results. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	runID    string
	started  time.Time
	now      func() time.Time
	tests    map[testKey]*pending
	order    []testKey
	packages map[string]*pending
	pkgOrder []string
}

func NewCollector() *Collector {
	return &Collector{
		runID:    uuid.NewString(),
		started:  time.Now(),
		now:      time.Now,
		tests:    make(map[testKey]*pending),
		packages: make(map[string]*pending),
	}
}

func (c *Collector) RunID() string {
	return c.runID
}

// Add records ev. When ev finishes a test, the finished result is returned
// with ok set.
func (c *Collector) Add(ev parser.Event) (TestResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Action {
	case parser.ActionBuildOutput:
		ev.Package, ev.Action = ev.ImportPath, parser.ActionOutput
	case parser.ActionBuildFail:
		ev.Package, ev.Action = ev.ImportPath, parser.ActionFail
	}

	if ev.Test == "" {
		c.addPackage(ev)
		return TestResult{}, false
	}

	key := testKey{ev.Package, ev.Test}
	p, ok := c.tests[key]
	if !ok {
		p = &pending{result: TestResult{Package: ev.Package, Name: ev.Test}}
		c.tests[key] = p
		c.order = append(c.order, key)
	}

	switch ev.Action {
	case parser.ActionOutput:
		p.output.WriteString(ev.Output)
	case parser.ActionPass, parser.ActionFail, parser.ActionSkip:
		p.result.Status = Status(ev.Action)
		p.result.Duration = ev.Duration()
		p.result.Output = p.output.String()
		return p.result, true
	}
	return TestResult{}, false
}

func (c *Collector) addPackage(ev parser.Event) {
	p, ok := c.packages[ev.Package]
	if !ok {
		p = &pending{result: TestResult{Name: ev.Package}}
		c.packages[ev.Package] = p
		c.pkgOrder = append(c.pkgOrder, ev.Package)
	}

	switch ev.Action {
	case parser.ActionOutput:
		p.output.WriteString(ev.Output)
	case parser.ActionPass, parser.ActionFail, parser.ActionSkip:
		p.result.Status = Status(ev.Action)
		p.result.Duration = ev.Duration()
	}
}

// Summary snapshots the results collected so far. Tests that never finished
// are reported as failed.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		RunID:    c.runID,
		Started:  c.started,
		Finished: c.now(),
	}

	for _, key := range c.order {
		p := c.tests[key]
		r := p.result
		if r.Status == "" {
			r.Status = StatusFail
			r.Output = p.output.String()
		}
		switch r.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		case StatusSkip:
			s.Skipped++
		}
		s.Tests = append(s.Tests, r)
	}

	for _, name := range c.pkgOrder {
		p := c.packages[name]
		status := p.result.Status
		// Lines printed by the go command itself carry no package and no
		// final action.
		if status == "" && name != "" {
			status = StatusFail
		}
		s.Packages = append(s.Packages, PackageResult{
			Name:     name,
			Status:   status,
			Duration: p.result.Duration,
			Output:   p.output.String(),
		})
	}
	sort.SliceStable(s.Packages, func(i, j int) bool {
		return s.Packages[i].Name < s.Packages[j].Name
	})

	return s
}
