package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Event
		wantErr bool
	}{
		{
			name: "passing test",
			input: `{"Time":"2024-05-01T10:00:00Z","Action":"run","Package":"example.com/e2e","Test":"TestCheckout"}
{"Time":"2024-05-01T10:00:00Z","Action":"output","Package":"example.com/e2e","Test":"TestCheckout","Output":"=== RUN   TestCheckout\n"}
{"Time":"2024-05-01T10:00:03Z","Action":"pass","Package":"example.com/e2e","Test":"TestCheckout","Elapsed":3.25}`,
			want: []Event{
				{Action: "run", Package: "example.com/e2e", Test: "TestCheckout"},
				{Action: "output", Package: "example.com/e2e", Test: "TestCheckout", Output: "=== RUN   TestCheckout\n"},
				{Action: "pass", Package: "example.com/e2e", Test: "TestCheckout", Elapsed: 3.25},
			},
		},
		{
			name: "build failure text",
			input: `# example.com/e2e
e2e/checkout_test.go:12:2: undefined: pages

{"Action":"fail","Package":"example.com/e2e","Elapsed":0}`,
			want: []Event{
				{Action: "output", Output: "# example.com/e2e\n"},
				{Action: "output", Output: "e2e/checkout_test.go:12:2: undefined: pages\n"},
				{Action: "fail", Package: "example.com/e2e"},
			},
		},
		{
			name:    "broken json",
			input:   `{"Action":"run",`,
			wantErr: true,
		},
		{
			name:    "missing action",
			input:   `{"Package":"example.com/e2e"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			got, err := p.ParseString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseString() got %d events, want %d", len(got), len(tt.want))
			}
			for i := range got {
				g, w := got[i], tt.want[i]
				if g.Action != w.Action || g.Package != w.Package || g.Test != w.Test || g.Output != w.Output || g.Elapsed != w.Elapsed {
					t.Errorf("Event[%d] = %+v, want %+v", i, g, w)
				}
			}
		})
	}
}

func TestParseErrorReportsLine(t *testing.T) {
	_, err := New().ParseString("{\"Action\":\"run\"}\n{oops}\n")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !strings.HasPrefix(err.Error(), "line 2:") {
		t.Errorf("Expected line number in error, got %v", err)
	}
}

func TestEventHelpers(t *testing.T) {
	ev := Event{Action: ActionFail, Elapsed: 1.5}
	if !ev.Final() {
		t.Error("Expected fail to be final")
	}
	if ev.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %s, want 1.5s", ev.Duration())
	}
	if (Event{Action: ActionOutput}).Final() {
		t.Error("Expected output not to be final")
	}
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	input := `{"Action":"run","Test":"A"}
{"Action":"run","Test":"B"}`

	seen := 0
	err := New().Stream(strings.NewReader(input), func(Event) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Stream() error = %v, want %v", err, stop)
	}
	if seen != 1 {
		t.Errorf("Expected callback once, got %d", seen)
	}
}

func TestStreamLongLine(t *testing.T) {
	big := strings.Repeat("x", 3<<20)
	input := `{"Action":"output","Package":"p","Test":"TestDump","Output":"` + big + `\n"}` + "\r\n" +
		"plain " + big + "\n" +
		`{"Action":"pass","Package":"p","Test":"TestDump"}`

	events, err := New().ParseString(input)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if len(events[0].Output) != len(big)+1 {
		t.Errorf("Output length = %d, want %d", len(events[0].Output), len(big)+1)
	}
	if events[1].Action != ActionOutput || events[1].Output != "plain "+big+"\n" {
		t.Error("Expected long plain line to become an output event")
	}
	if events[2].Action != ActionPass {
		t.Errorf("Expected events after the long lines to survive, got %q", events[2].Action)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	content := `{"Time":"2024-05-01T10:00:00Z","Action":"start","Package":"example.com/e2e"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	events, err := New().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(events) != 1 || events[0].Action != ActionStart {
		t.Fatalf("Unexpected events %+v", events)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !events[0].Time.Equal(want) {
		t.Errorf("Time = %v, want %v", events[0].Time, want)
	}

	if _, err := New().ParseFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("Expected error for missing file")
	}
}
