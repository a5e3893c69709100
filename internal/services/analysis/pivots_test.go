package analysis

import (
	"context"
	"testing"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
)

func TestComputePivotLevels(t *testing.T) {
	levels := ComputePivotLevels(interfaces.PivotInput{
		PreviousDayHigh:  110,
		PreviousDayLow:   90,
		PreviousDayClose: 100,
	})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"pivot point", levels.PivotPoint, 100},
		{"support 1", levels.Support1, 90},
		{"support 2", levels.Support2, 80},
		{"support 3", levels.Support3, 70},
		{"resistance 1", levels.Resistance1, 110},
		{"resistance 2", levels.Resistance2, 120},
		{"resistance 3", levels.Resistance3, 130},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %.2f, want %.2f", tt.name, tt.got, tt.want)
		}
	}
}

func TestComputePivotLevelsRounding(t *testing.T) {
	levels := ComputePivotLevels(interfaces.PivotInput{
		PreviousDayHigh:  101.37,
		PreviousDayLow:   99.11,
		PreviousDayClose: 100.52,
	})

	// PP = (101.37 + 99.11 + 100.52) / 3 = 100.333...
	if levels.PivotPoint != 100.33 {
		t.Errorf("pivot point = %.4f, want 100.33", levels.PivotPoint)
	}
	// S1 = 2*PP - H computed from the unrounded pivot.
	if levels.Support1 != 99.30 {
		t.Errorf("support 1 = %.4f, want 99.30", levels.Support1)
	}
}

func TestComputePivotLevelsDeterministic(t *testing.T) {
	input := interfaces.PivotInput{PreviousDayHigh: 873.41, PreviousDayLow: 851.02, PreviousDayClose: 860.77}
	first := ComputePivotLevels(input)
	second := ComputePivotLevels(input)
	if *first != *second {
		t.Errorf("pivot computation not deterministic: %+v vs %+v", first, second)
	}
}

func TestAnalyzeTARejectsInvalidInput(t *testing.T) {
	svc := NewService(nil, nil, &common.LLMConfig{}, common.GetLogger())

	if _, err := svc.AnalyzeTA(context.Background(), interfaces.PivotInput{}); err == nil {
		t.Error("Expected error for all-zero input")
	}

	if _, err := svc.AnalyzeTA(context.Background(), interfaces.PivotInput{
		PreviousDayHigh: 90, PreviousDayLow: 110, PreviousDayClose: 100,
	}); err == nil {
		t.Error("Expected error when high is below low")
	}
}

func TestAnalyzeTASuccess(t *testing.T) {
	svc := NewService(nil, nil, &common.LLMConfig{}, common.GetLogger())

	levels, err := svc.AnalyzeTA(context.Background(), interfaces.PivotInput{
		PreviousDayHigh: 110, PreviousDayLow: 90, PreviousDayClose: 100,
	})
	if err != nil {
		t.Fatalf("AnalyzeTA failed: %v", err)
	}
	if levels.PivotPoint != 100 {
		t.Errorf("pivot point = %.2f, want 100", levels.PivotPoint)
	}
}
