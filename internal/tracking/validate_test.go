package tracking

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAssemblyValidate(t *testing.T) {
	t.Parallel()

	weight := 2.5
	negative := -1.0
	nan := math.NaN()
	tests := []struct {
		name    string
		in      Assembly
		wantErr bool
	}{
		{"valid with weight", Assembly{ID: "a1", ProjectID: "p1", TotalQuantity: 10, WeightPerUnit: &weight}, false},
		{"valid without weight", Assembly{ID: "a1", ProjectID: "p1"}, false},
		{"missing id", Assembly{ProjectID: "p1"}, true},
		{"missing project", Assembly{ID: "a1"}, true},
		{"negative quantity", Assembly{ID: "a1", ProjectID: "p1", TotalQuantity: -1}, true},
		{"negative weight", Assembly{ID: "a1", ProjectID: "p1", WeightPerUnit: &negative}, true},
		{"nan weight", Assembly{ID: "a1", ProjectID: "p1", WeightPerUnit: &nan}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.in.Validate()
			if tc.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidRecord))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProgressEntryValidate(t *testing.T) {
	t.Parallel()

	valid := ProgressEntry{
		ID:                "e1",
		AssemblyID:        "a1",
		StageID:           "s1",
		WorkerName:        "Ali",
		QuantityCompleted: 3,
		TimeSpent:         45,
		CompletedAt:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, valid.Validate())

	noDate := valid
	noDate.CompletedAt = time.Time{}
	require.ErrorIs(t, noDate.Validate(), ErrInvalidRecord)

	negQty := valid
	negQty.QuantityCompleted = -2
	require.ErrorIs(t, negQty.Validate(), ErrInvalidRecord)

	negTime := valid
	negTime.TimeSpent = -0.5
	require.ErrorIs(t, negTime.Validate(), ErrInvalidRecord)

	noStage := valid
	noStage.StageID = ""
	require.ErrorIs(t, noStage.Validate(), ErrInvalidRecord)
}

func TestStageValidateAndParseStatus(t *testing.T) {
	t.Parallel()

	stage := Stage{ID: "s1", ProjectID: "p1", Name: "imalat", Status: StageStatusInProgress}
	require.NoError(t, stage.Validate())

	stage.Status = "archived"
	require.ErrorIs(t, stage.Validate(), ErrInvalidRecord)

	status, err := ParseStageStatus("In-Progress")
	require.NoError(t, err)
	require.Equal(t, StageStatusInProgress, status)

	status, err = ParseStageStatus("on_hold")
	require.NoError(t, err)
	require.Equal(t, StageStatusOnHold, status)

	_, err = ParseStageStatus("archived")
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestAssemblyUnitWeight(t *testing.T) {
	t.Parallel()

	require.Zero(t, Assembly{}.UnitWeight())
	w := 4.25
	require.Equal(t, 4.25, Assembly{WeightPerUnit: &w}.UnitWeight())
}
