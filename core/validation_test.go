package core

import (
	"errors"
	"testing"
)

func TestValidateVectorSet(t *testing.T) {
	tests := []struct {
		name    string
		set     *FeatureVectorSet
		wantErr error
	}{
		{
			name: "valid set",
			set: &FeatureVectorSet{
				Vectors: [][]float32{{1, 0}, {0, 1}},
				Dim:     2,
			},
			wantErr: nil,
		},
		{
			name: "zero vector is allowed",
			set: &FeatureVectorSet{
				Vectors: [][]float32{{0, 0}, {0, 1}},
				Dim:     2,
			},
			wantErr: nil,
		},
		{
			name:    "nil set",
			set:     nil,
			wantErr: ErrEmptyVectorSet,
		},
		{
			name:    "empty set",
			set:     &FeatureVectorSet{Dim: 4},
			wantErr: ErrEmptyVectorSet,
		},
		{
			name: "ragged set",
			set: &FeatureVectorSet{
				Vectors: [][]float32{{1, 0}, {0, 1, 0}},
				Dim:     2,
			},
			wantErr: ErrRaggedVectorSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVectorSet(tt.set)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateVectorSet() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateVectorSet() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckShape(t *testing.T) {
	set := &FeatureVectorSet{
		Vectors: [][]float32{{1, 0, 0}, {0, 1, 0}},
		Dim:     3,
	}

	if err := CheckShape(set, 2, 3); err != nil {
		t.Errorf("CheckShape() matching shape error = %v", err)
	}
	if err := CheckShape(set, 0, 0); err != nil {
		t.Errorf("CheckShape() without expectations error = %v", err)
	}

	err := CheckShape(set, 16384, 2304)
	if !errors.Is(err, ErrValidationMismatch) {
		t.Fatalf("CheckShape() error = %v, want %v", err, ErrValidationMismatch)
	}
}

func TestValidateGraphArtifact(t *testing.T) {
	positions := PositionSet{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}}

	tests := []struct {
		name     string
		artifact *GraphArtifact
		n        int
		wantErr  bool
	}{
		{
			name:     "valid",
			artifact: &GraphArtifact{Positions: positions, Edges: EdgeSet{{Source: 0, Target: 2, Weight: 0.5}}},
			n:        3,
		},
		{
			name:     "nil artifact",
			artifact: nil,
			n:        3,
			wantErr:  true,
		},
		{
			name:     "position count mismatch",
			artifact: &GraphArtifact{Positions: positions},
			n:        4,
			wantErr:  true,
		},
		{
			name:     "edge out of range",
			artifact: &GraphArtifact{Positions: positions, Edges: EdgeSet{{Source: 0, Target: 3}}},
			n:        3,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGraphArtifact(tt.artifact, tt.n)
			if tt.wantErr != (err != nil) {
				t.Fatalf("ValidateGraphArtifact() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrCardinalityMismatch) {
				t.Errorf("ValidateGraphArtifact() error = %v, want %v", err, ErrCardinalityMismatch)
			}
		})
	}
}
