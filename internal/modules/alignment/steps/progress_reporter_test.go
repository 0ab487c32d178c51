package steps

import (
	"testing"
	"time"
)

type progressSink struct {
	phases []string
	pcts   []int
	msgs   []string
}

func (s *progressSink) report(phase string, pct int, msg string) {
	s.phases = append(s.phases, phase)
	s.pcts = append(s.pcts, pct)
	s.msgs = append(s.msgs, msg)
}

func TestProgressReporterMonotone(t *testing.T) {
	sink := &progressSink{}
	p := NewProgressReporter("extracting", sink.report, 10, time.Millisecond)

	p.Update(20, "forward")
	p.Update(15, "backward")
	p.Update(30, "forward again")

	if len(sink.pcts) != 3 {
		t.Fatalf("updates: want=3 got=%d", len(sink.pcts))
	}
	// A regressing pct is clamped to the last reported value.
	if sink.pcts[0] != 20 || sink.pcts[1] != 20 || sink.pcts[2] != 30 {
		t.Fatalf("pcts: got=%v", sink.pcts)
	}
	for _, phase := range sink.phases {
		if phase != "extracting" {
			t.Fatalf("phase: got=%q", phase)
		}
	}
}

func TestProgressReporterThrottlesRepeats(t *testing.T) {
	sink := &progressSink{}
	p := NewProgressReporter("merging_concepts", sink.report, 0, time.Hour)

	p.Update(40, "same")
	p.Update(40, "same")
	p.Update(40, "same")

	if len(sink.pcts) != 1 {
		t.Fatalf("identical updates within the interval must collapse, got=%d", len(sink.pcts))
	}
}

func TestProgressReporterCapsAt99(t *testing.T) {
	sink := &progressSink{}
	p := NewProgressReporter("generating_venn", sink.report, 95, time.Millisecond)

	p.Update(250, "overshoot")

	if len(sink.pcts) != 1 || sink.pcts[0] != 99 {
		t.Fatalf("pcts: got=%v", sink.pcts)
	}
}

func TestProgressReporterUpdateRange(t *testing.T) {
	sink := &progressSink{}
	p := NewProgressReporter("building_tesseract", sink.report, 70, time.Millisecond)

	p.UpdateRange(0, 10, 70, 85, "start")
	p.UpdateRange(5, 10, 70, 85, "half")
	p.UpdateRange(10, 10, 70, 85, "all")

	want := []int{70, 78, 85}
	if len(sink.pcts) != 3 {
		t.Fatalf("updates: got=%v", sink.pcts)
	}
	for i, w := range want {
		if sink.pcts[i] != w {
			t.Fatalf("pcts: want=%v got=%v", want, sink.pcts)
		}
	}
}

func TestProgressReporterKeepsLastMessage(t *testing.T) {
	sink := &progressSink{}
	p := NewProgressReporter("extracting", sink.report, 0, time.Millisecond)

	p.Update(10, "doing work")
	p.Update(20, "")

	if sink.msgs[1] != "doing work" {
		t.Fatalf("blank message must inherit the previous one, got=%q", sink.msgs[1])
	}
}
