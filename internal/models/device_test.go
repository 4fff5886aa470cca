package models

import "testing"

func TestAlertThresholds_Validate(t *testing.T) {
	valid := AlertThresholds{
		Temperature: Range{Min: 10, Max: 30},
		Humidity:    Range{Min: 30, Max: 70},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	inverted := valid
	inverted.Humidity = Range{Min: 70, Max: 30}
	if err := inverted.Validate(); err == nil {
		t.Error("Expected error for inverted humidity range")
	}
}

func TestCalibration_Validate(t *testing.T) {
	tests := []struct {
		threshold int
		wantErr   bool
	}{
		{0, false},
		{500, false},
		{1023, false},
		{-1, true},
		{1024, true},
	}

	for _, tt := range tests {
		err := Calibration{LightThreshold: tt.threshold}.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%d) error = %v, wantErr %v", tt.threshold, err, tt.wantErr)
		}
	}
}

func TestControlAction_Valid(t *testing.T) {
	for _, a := range []ControlAction{ActionLEDOn, ActionLEDOff, ActionReset, ActionRestart} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if ControlAction("self_destruct").Valid() {
		t.Error("Unknown action should be invalid")
	}
}

func TestLookupTimeRange(t *testing.T) {
	r, err := LookupTimeRange("7d")
	if err != nil {
		t.Fatalf("LookupTimeRange() error = %v", err)
	}
	if r.ChartPoints < 20 || r.ChartPoints > 30 {
		t.Errorf("ChartPoints = %d, want 20-30", r.ChartPoints)
	}

	if _, err := LookupTimeRange("1y"); err == nil {
		t.Error("Expected error for unknown range")
	}
	if MustTimeRange("1y").Key != DefaultTimeRange {
		t.Error("MustTimeRange should fall back to default")
	}
}

func TestChannelStats_Format(t *testing.T) {
	unavailable := ChannelStats{}
	if unavailable.Format(unavailable.Avg, 1) != Unavailable {
		t.Errorf("Unavailable stats should format as %s", Unavailable)
	}

	stats := ChannelStats{Available: true, Avg: 21.456}
	if got := stats.Format(stats.Avg, 1); got != "21.5" {
		t.Errorf("Format() = %s, want 21.5", got)
	}
}
