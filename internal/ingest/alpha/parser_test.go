package alpha

import (
	"strings"
	"testing"
	"time"
)

const sampleCSV = `
"Legs · Day 2 · Week 4 · Push-Pull-Legs";"2026-02-19 4:54 h";"1:02 hr"
"1. Hack Squats · Machine · 8 reps";"WU1 · 37,5 kg · 9 reps<br>WU2 · 72,5 kg · 7 reps"
#;KG;REPS;RIR
1;115;8;1
2;115;10;1
3;115;10;1
"2. Sumo Squats · Smith machine · 10 reps";"WU1 · 35 kg · 8 reps"
#;KG;REPS;RIR
1;70;8;1
2;70;12;1
"3. Hyperextensions on Roman Chair · Bodyweight · 10 reps";"WU1 · +0 kg · 8 reps"
#;KG;REPS;RIR
1;+35;10;0
2;+35;9;1
3;+35;10;0
"4. Reverse Lunges · Dumbbells · 10 reps"
#;KG;REPS;RIR
1;10;10;1
2;10;10;1
3;10;10;0
"5. Standing Calf Raises · Machine · 12 reps";"WU1 · 47,5 kg · 8 reps"
#;KG;REPS;RIR
1;157,5;11;1
2;157,5;11;0
3;157,5;10;0
"6. Hanging Leg Raises · Bodyweight · 12 reps · 2 dropsets"
#;KG;REPS;RIR
1;+0;12;1
2;+0;12;1
3;+0;12;0

"Push · Day 1 · Week 4 · Push-Pull-Legs";"2026-02-17 5:04 h";"1:12 hr"
"1. Bench Press · Barbell · 6 reps";"WU1 · 22,5 kg · 10 reps<br>WU2 · 47,5 kg · 8 reps<br>WU3 · 77,5 kg · 6 reps"
#;KG;REPS;RIR
1;102,5;6;0
2;102,5;6;0
3;100;6;0
`

// TestParseCompleteSessions verifies parsing a multi-session CSV with exercises and sets.
func TestParseCompleteSessions(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	s1 := sessions[0]
	if s1.Name != "Legs · Day 2 · Week 4 · Push-Pull-Legs" {
		t.Errorf("s1.Name = %q", s1.Name)
	}
	if want := time.Date(2026, 2, 19, 4, 54, 0, 0, time.UTC); !s1.Start.Equal(want) {
		t.Errorf("s1.Start = %v, want %v", s1.Start, want)
	}
	if s1.Duration != 62*time.Minute {
		t.Errorf("s1.Duration = %v, want 1h2m", s1.Duration)
	}
	if len(s1.Exercises) != 6 {
		t.Fatalf("s1 exercises = %d, want 6", len(s1.Exercises))
	}

	tests := []struct {
		name       string
		equipment  string
		targetReps int
		sets       int
	}{
		{"Hack Squats", "Machine", 8, 5},        // 2 warmup + 3 working
		{"Sumo Squats", "Smith machine", 10, 3}, // multi-word equipment
		{"Hyperextensions on Roman Chair", "Bodyweight", 10, 4},
		{"Reverse Lunges", "Dumbbells", 10, 3}, // no warmups
		{"Standing Calf Raises", "Machine", 12, 4},
		{"Hanging Leg Raises", "Bodyweight", 12, 3}, // "· 2 dropsets" modifier
	}
	for i, tt := range tests {
		ex := s1.Exercises[i]
		if ex.Number != i+1 {
			t.Errorf("ex%d.Number = %d", i+1, ex.Number)
		}
		if ex.Name != tt.name {
			t.Errorf("ex%d.Name = %q, want %q", i+1, ex.Name, tt.name)
		}
		if ex.Equipment != tt.equipment {
			t.Errorf("ex%d.Equipment = %q, want %q", i+1, ex.Equipment, tt.equipment)
		}
		if ex.TargetReps != tt.targetReps {
			t.Errorf("ex%d.TargetReps = %d, want %d", i+1, ex.TargetReps, tt.targetReps)
		}
		if len(ex.Sets) != tt.sets {
			t.Errorf("ex%d sets = %d, want %d", i+1, len(ex.Sets), tt.sets)
		}
	}

	calf := s1.Exercises[4].Sets[1]
	if calf.WeightKg != 157.5 || calf.Reps != 11 || calf.RIR != 1 || calf.Warmup {
		t.Errorf("calf set = %+v", calf)
	}

	s2 := sessions[1]
	if s2.Name != "Push · Day 1 · Week 4 · Push-Pull-Legs" {
		t.Errorf("s2.Name = %q", s2.Name)
	}
	if s2.Duration != 72*time.Minute {
		t.Errorf("s2.Duration = %v, want 1h12m", s2.Duration)
	}
}

// TestParseWeight verifies comma decimals and the +N bodyweight notation.
func TestParseWeight(t *testing.T) {
	tests := []struct {
		in     string
		weight float64
		bw     bool
	}{
		{"102,5", 102.5, false},
		{"115", 115, false},
		{"+35", 35, true},
		{"+0", 0, true},
		{" +12,5 ", 12.5, true},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		w, bw := parseWeight(tt.in)
		if w != tt.weight || bw != tt.bw {
			t.Errorf("parseWeight(%q) = (%v, %v), want (%v, %v)", tt.in, w, bw, tt.weight, tt.bw)
		}
	}
}

// TestFractionalRIR verifies half-RIR values like "0,5".
func TestFractionalRIR(t *testing.T) {
	if got := parseDecimal("0,5"); got != 0.5 {
		t.Errorf("parseDecimal(0,5) = %f, want 0.5", got)
	}
}

// TestParseDuration verifies the hour and minute duration forms.
func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"1:02 hr": 62 * time.Minute,
		"0:45 hr": 45 * time.Minute,
		"45 min":  45 * time.Minute,
		"soon":    0,
	}
	for in, want := range tests {
		if got := parseDuration(in); got != want {
			t.Errorf("parseDuration(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestWarmupParsing verifies warmup extraction from the exercise header's second field.
func TestWarmupParsing(t *testing.T) {
	sets := parseWarmups("WU1 · 37,5 kg · 9 reps<br>WU2 · 72,5 kg · 7 reps")
	if len(sets) != 2 {
		t.Fatalf("warmup sets = %d, want 2", len(sets))
	}
	if sets[0].WeightKg != 37.5 || sets[0].Reps != 9 || !sets[0].Warmup {
		t.Errorf("wu1 = %+v", sets[0])
	}
	if sets[1].WeightKg != 72.5 {
		t.Errorf("wu2 weight = %f, want 72.5", sets[1].WeightKg)
	}

	sets = parseWarmups("WU1 · +0 kg · 8 reps")
	if len(sets) != 1 || !sets[0].Bodyweight || sets[0].WeightKg != 0 {
		t.Errorf("bodyweight warmup = %+v", sets)
	}
}

// TestEmptyInput verifies that empty input returns no sessions without error.
func TestEmptyInput(t *testing.T) {
	sessions, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(sessions))
	}
}

// TestOrphanLines verifies exercises and sets outside their parent are rejected.
func TestOrphanLines(t *testing.T) {
	inputs := []string{
		`"1. Hack Squats · Machine · 8 reps"`,
		`"Legs";"2026-02-19 4:54 h";"1:02 hr"` + "\n1;115;8;1",
	}
	for _, in := range inputs {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Errorf("Parse(%q) expected error", in)
		}
	}
}
