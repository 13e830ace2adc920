// Package parser reads the event stream written by `go test -json`.
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Actions emitted by test2json.
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPause  = "pause"
	ActionCont   = "cont"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionBench  = "bench"
	ActionOutput = "output"

	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

// Event is one line of `go test -json` output.
type Event struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package,omitempty"`
	Test    string    `json:"Test,omitempty"`
	Elapsed float64   `json:"Elapsed,omitempty"`
	Output  string    `json:"Output,omitempty"`

	// ImportPath is set on build events instead of Package.
	ImportPath string `json:"ImportPath,omitempty"`
}

// Final reports whether the event ends a test or a package.
func (e Event) Final() bool {
	switch e.Action {
	case ActionPass, ActionFail, ActionSkip, ActionBuildFail:
		return true
	}
	return false
}

// Duration converts Elapsed into a time.Duration.
func (e Event) Duration() time.Duration {
	return time.Duration(e.Elapsed * float64(time.Second))
}

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) ParseFile(filename string) ([]Event, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return p.collect(file)
}

func (p *Parser) ParseString(content string) ([]Event, error) {
	return p.collect(strings.NewReader(content))
}

func (p *Parser) collect(r io.Reader) ([]Event, error) {
	var events []Event
	err := p.Stream(r, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Stream calls fn for every event read from r until r is exhausted or fn
// returns an error. Lines that are not JSON objects, such as build failures
// printed by the go command, become output events.
func (p *Parser) Stream(r io.Reader, fn func(Event) error) error {
	// Lines have no size limit: a test can print megabytes without a newline.
	reader := bufio.NewReaderSize(r, 64*1024)
	lineNum := 0

	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		if len(line) > 0 {
			lineNum++
			line = bytes.TrimSuffix(bytes.TrimSuffix(line, []byte("\n")), []byte("\r"))
			if len(bytes.TrimSpace(line)) > 0 {
				ev, err := p.parseLine(line, lineNum)
				if err != nil {
					return err
				}
				if err := fn(ev); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

func (p *Parser) parseLine(line []byte, lineNum int) (Event, error) {
	trimmed := bytes.TrimSpace(line)
	if trimmed[0] != '{' {
		return Event{Action: ActionOutput, Output: string(line) + "\n"}, nil
	}

	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return Event{}, fmt.Errorf("line %d: %w", lineNum, err)
	}
	if ev.Action == "" {
		return Event{}, fmt.Errorf("line %d: event has no Action", lineNum)
	}
	return ev, nil
}
