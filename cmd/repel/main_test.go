package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// isolateHome points HOME at a temp directory so tests never touch a
// real ~/.repel/.
func isolateHome(t *testing.T) string {
	t.Helper()
	tmpHome := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	return tmpHome
}

// execRoot runs the CLI with the given arguments and captures output.
func execRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

var (
	iterLineRe    = regexp.MustCompile(`^Iteration (\d+) of (\d+), (\d+) overlaps \(\d+\.\d{6} s\)$`)
	elapsedLineRe = regexp.MustCompile(`^Elapsed time: \d+\.\d{6}$`)
)

func TestParseCounts(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantN     int
		wantIters int
		wantErr   bool
	}{
		{"no args", nil, 10000, 20, false},
		{"circles only", []string{"50"}, 50, 20, false},
		{"both", []string{"50", "3"}, 50, 3, false},
		{"zero iterations", []string{"50", "0"}, 50, 0, false},
		{"bad circles", []string{"abc"}, 0, 0, true},
		{"negative circles", []string{"-5"}, 0, 0, true},
		{"bad iterations", []string{"5", "x"}, 0, 0, true},
		{"negative iterations", []string{"5", "-1"}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, iters, err := parseCounts(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseCounts(%v) succeeded, want error", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCounts(%v): %v", tt.args, err)
			}
			if n != tt.wantN || iters != tt.wantIters {
				t.Errorf("parseCounts(%v) = (%d, %d), want (%d, %d)",
					tt.args, n, iters, tt.wantN, tt.wantIters)
			}
		})
	}
}

func TestRun_ReportFormat(t *testing.T) {
	isolateHome(t)

	stdout, _, err := execRoot(t, "30", "3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := splitLines(stdout)
	if len(lines) != 4 {
		t.Fatalf("got %d output lines, want 4:\n%s", len(lines), stdout)
	}
	for i := 0; i < 3; i++ {
		m := iterLineRe.FindStringSubmatch(lines[i])
		if m == nil {
			t.Fatalf("line %d = %q, want iteration report", i, lines[i])
		}
		if m[2] != "3" {
			t.Errorf("line %d reports %s total iterations, want 3", i, m[2])
		}
	}
	if !elapsedLineRe.MatchString(lines[3]) {
		t.Errorf("last line = %q, want elapsed report", lines[3])
	}
}

func TestRun_ZeroIterations(t *testing.T) {
	isolateHome(t)

	stdout, _, err := execRoot(t, "10", "0")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := splitLines(stdout)
	if len(lines) != 1 {
		t.Fatalf("got %d output lines, want 1:\n%s", len(lines), stdout)
	}
	if !elapsedLineRe.MatchString(lines[0]) {
		t.Errorf("line = %q, want elapsed report", lines[0])
	}
}

func TestRun_TooManyArgs(t *testing.T) {
	isolateHome(t)

	_, _, err := execRoot(t, "1", "2", "3")
	if err == nil {
		t.Fatal("expected error for three positional arguments")
	}
}

func TestRun_GridBackend(t *testing.T) {
	isolateHome(t)

	stdout, _, err := execRoot(t, "--backend", "grid", "30", "3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(splitLines(stdout)); got != 4 {
		t.Errorf("got %d output lines, want 4", got)
	}
}

func TestRun_InvalidBackend(t *testing.T) {
	isolateHome(t)

	_, _, err := execRoot(t, "--backend", "cuda", "10", "1")
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "invalid backend") {
		t.Errorf("error = %v, want mention of invalid backend", err)
	}
}

func TestRun_JSONSummary(t *testing.T) {
	isolateHome(t)

	stdout, _, err := execRoot(t, "--json", "25", "2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(stdout, "Iteration") {
		t.Errorf("JSON mode still prints the text report:\n%s", stdout)
	}

	var summary map[string]any
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("decode JSON summary: %v\n%s", err, stdout)
	}
	if summary["circles"] != float64(25) {
		t.Errorf("circles = %v, want 25", summary["circles"])
	}
	if summary["iterations"] != float64(2) {
		t.Errorf("iterations = %v, want 2", summary["iterations"])
	}
	if _, ok := summary["total_overlaps"]; !ok {
		t.Error("summary missing total_overlaps")
	}
}

func TestRun_WritesFrames(t *testing.T) {
	isolateHome(t)
	dir := filepath.Join(t.TempDir(), "frames")

	_, _, err := execRoot(t, "--frames", dir, "20", "2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, name := range []string{"frame_00000.gp", "frame_00001.gp", "frame_00002.gp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing frame script %s: %v", name, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read frames dir: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d frame scripts, want 3", len(entries))
	}
}

func TestRun_SameSeedSameCounts(t *testing.T) {
	isolateHome(t)

	// A small box guarantees overlaps for a meaningful comparison.
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `init:
  max_x: 100
  max_y: 100
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	counts := func() []string {
		stdout, _, err := execRoot(t, "--config", configPath, "--seed", "7", "40", "3")
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		var got []string
		for _, line := range splitLines(stdout) {
			if m := iterLineRe.FindStringSubmatch(line); m != nil {
				got = append(got, m[3])
			}
		}
		return got
	}

	first := counts()
	second := counts()

	if len(first) != 3 {
		t.Fatalf("got %d iteration lines, want 3", len(first))
	}
	if first[0] == "0" {
		t.Error("expected overlaps in a 100x100 box with 40 circles")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("iteration %d: counts %s and %s differ across identical runs",
				i+1, first[i], second[i])
		}
	}
}

func TestStartWatch(t *testing.T) {
	isolateHome(t)

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	session, err := startWatch(cmd, cfg, true)
	if err != nil {
		t.Fatalf("startWatch: %v", err)
	}
	defer session.stop()

	if session.srv.Addr() == "" {
		t.Error("server has no address")
	}
	if !strings.Contains(errOut.String(), "Viewer running at http://") {
		t.Errorf("stderr = %q, want viewer URL", errOut.String())
	}
	// The report stream stays clean for plain and JSON consumers alike.
	if out.String() != "" {
		t.Errorf("stdout = %q, want empty", out.String())
	}
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}
}

func TestVersionOutput(t *testing.T) {
	stdout, _, err := execRoot(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(stdout, "repel version") {
		t.Errorf("output = %q, want version string", stdout)
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execRoot(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(stdout), &v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if v["version"] == "" {
		t.Error("missing version field")
	}
}
