package core

import (
	"fmt"
	"slices"
	"time"
)

// StageName identifies one cacheable step of a unit's processing.
type StageName string

const (
	// StageVectors acquires and normalizes the unit's feature vectors.
	StageVectors StageName = "vectors"
	// StageGraph embeds the vectors into 3D and builds the neighbor graph.
	StageGraph StageName = "graph"
	// StageLabels fetches text labels for a subset of features.
	StageLabels StageName = "labels"
	// StageExport writes the unit's output document.
	StageExport StageName = "export"
)

// Stages lists every stage in execution order.
var Stages = []StageName{StageVectors, StageGraph, StageLabels, StageExport}

// ParseStage validates a stage name.
func ParseStage(s string) (StageName, error) {
	name := StageName(s)
	if !slices.Contains(Stages, name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
	}
	return name, nil
}

// CacheKey addresses one stage artifact of one unit.
type CacheKey struct {
	DatasetID string
	Unit      int
	Stage     StageName
}

// String returns the key as "dataset/unit/stage".
func (k CacheKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.DatasetID, k.Unit, k.Stage)
}

// StageState is the completion state of a cached stage.
type StageState int

const (
	StateNotStarted StageState = iota
	StateInProgress
	StateCompleted
	StateFailed
)

func (s StageState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StageRecord is the completion record stored alongside a stage artifact.
// Only a record in StateCompleted makes its artifact visible.
type StageRecord struct {
	State     StageState
	Checksum  []byte    // BLAKE2b digest of the artifact (Completed only)
	Size      int       // Artifact length in bytes (Completed only)
	UpdatedAt time.Time
	Error     string // Last failure message (Failed only)
}

// FeatureVectorSet is an ordered set of unit-normalized vectors of equal dimension.
// It is treated as immutable once acquired.
type FeatureVectorSet struct {
	Vectors [][]float32
	Dim     int
}

// Len returns the number of vectors.
func (s *FeatureVectorSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Vectors)
}

// Position is a 3D coordinate.
type Position [3]float32

// PositionSet is parallel to a FeatureVectorSet: Positions[i] belongs to vector i.
type PositionSet []Position

// Bounds returns the per-axis minimum and maximum.
func (p PositionSet) Bounds() (lo, hi Position) {
	if len(p) == 0 {
		return lo, hi
	}
	lo, hi = p[0], p[0]
	for _, pos := range p[1:] {
		for axis := range 3 {
			lo[axis] = min(lo[axis], pos[axis])
			hi[axis] = max(hi[axis], pos[axis])
		}
	}
	return lo, hi
}

// Edge connects two vector indices with their cosine similarity.
type Edge struct {
	Source int
	Target int
	Weight float32
}

// EdgeSet is the similarity graph of one unit.
type EdgeSet []Edge

// GraphArtifact is the output of the embed-and-build-graph stage.
type GraphArtifact struct {
	Positions PositionSet
	Edges     EdgeSet
}

// LabelRecord maps feature index to its text label.
type LabelRecord map[int]string

// Indices returns the labeled indices in ascending order.
func (l LabelRecord) Indices() []int {
	indices := make([]int, 0, len(l))
	for idx := range l {
		indices = append(indices, idx)
	}
	slices.Sort(indices)
	return indices
}

// ExportRecord describes the persisted output document of a unit.
type ExportRecord struct {
	Path string
	Size int64
}
