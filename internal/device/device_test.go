package device

import "testing"

// TestSimKnob_StaysInBounds runs the walk long enough to bounce off both
// ends of its range and checks every reading stays inside it.
func TestSimKnob_StaysInBounds(t *testing.T) {
	knob := NewSimKnob(0, 180, 42)

	for i := 0; i < 10000; i++ {
		v := knob.ReadValue()
		if v < 0 || v > 180 {
			t.Fatalf("reading %d = %v, out of [0, 180]", i, v)
		}
	}
}

func TestSimKnob_Deterministic(t *testing.T) {
	a := NewSimKnob(0, 180, 7)
	b := NewSimKnob(0, 180, 7)

	for i := 0; i < 100; i++ {
		if av, bv := a.ReadValue(), b.ReadValue(); av != bv {
			t.Fatalf("same seed diverged at step %d: %v vs %v", i, av, bv)
		}
	}
}

func TestSimKnob_BadRangeFallsBack(t *testing.T) {
	knob := NewSimKnob(180, 0, 1)
	v := knob.ReadValue()
	if v < 0 || v > 180 {
		t.Fatalf("reading %v outside fallback range [0, 180]", v)
	}
}

func TestScriptedInput(t *testing.T) {
	in := NewScriptedInput(90, 93, 120)

	want := []float64{90, 93, 120, 120, 120}
	for i, w := range want {
		if got := in.ReadValue(); got != w {
			t.Errorf("reading %d = %v, want %v", i, got, w)
		}
	}
}

func TestScriptedInput_Empty(t *testing.T) {
	in := NewScriptedInput()
	if got := in.ReadValue(); got != 0 {
		t.Errorf("empty script read %v, want 0", got)
	}
}

func TestSimServo_Records(t *testing.T) {
	servo := NewSimServo()

	if _, ok := servo.Current(); ok {
		t.Error("Current() reported a position before any Apply")
	}

	for _, v := range []float64{93, 120, 90} {
		if err := servo.Apply(v); err != nil {
			t.Fatalf("Apply(%v) error = %v", v, err)
		}
	}

	current, ok := servo.Current()
	if !ok || current != 90 {
		t.Errorf("Current() = %v, %v; want 90, true", current, ok)
	}

	applied := servo.Applied()
	if len(applied) != 3 {
		t.Fatalf("Applied() has %d entries, want 3", len(applied))
	}
	for i, w := range []float64{93, 120, 90} {
		if applied[i] != w {
			t.Errorf("applied[%d] = %v, want %v", i, applied[i], w)
		}
	}
}

func TestNullOutput(t *testing.T) {
	if err := (NullOutput{}).Apply(90); err != nil {
		t.Errorf("NullOutput.Apply error = %v", err)
	}
}

func TestEchoInput(t *testing.T) {
	servo := NewSimServo()
	echo := NewEchoInput(servo, 90)

	if got := echo.ReadValue(); got != 90 {
		t.Errorf("ReadValue() before any apply = %v, want fallback 90", got)
	}

	if err := servo.Apply(135); err != nil {
		t.Fatalf("Apply(135) error = %v", err)
	}
	if got := echo.ReadValue(); got != 135 {
		t.Errorf("ReadValue() = %v, want 135", got)
	}
}
