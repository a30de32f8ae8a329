// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package export

import (
	"fmt"
	"math"
	"time"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/dataset"
	"github.com/poiesic/horus/embed"
)

// EdgeType tags every exported edge.
const EdgeType = "coactivation"

// LayerDocument is the exported view of one unit.
type LayerDocument struct {
	Metadata Metadata `json:"metadata"`
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
}

// Metadata summarizes a layer document.
type Metadata struct {
	ModelID         string       `json:"modelId"`
	Layers          []int        `json:"layers"`
	SourceID        string       `json:"sourceId"`
	FeatureCount    int          `json:"featureCount"`
	EdgeCount       int          `json:"edgeCount"`
	LabeledCount    int          `json:"labeledCount"`
	Bounds          Bounds       `json:"bounds"`
	EmbedParams     embed.Params `json:"umapParams"`
	PipelineVersion string       `json:"pipelineVersion"`
	ComputedAt      time.Time    `json:"computedAt"`
}

// Bounds is the per-axis extent of the layout.
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// FeatureID addresses a feature across datasets.
type FeatureID struct {
	ModelID string `json:"modelId"`
	Layer   int    `json:"layer"`
	Index   int    `json:"index"`
}

// Node is one feature with its position and optional label.
type Node struct {
	ID        string     `json:"id"`
	FeatureID FeatureID  `json:"featureId"`
	Position  [3]float64 `json:"position"`
	Label     string     `json:"label,omitempty"`
}

// Edge is one similarity edge between two nodes.
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
	Type   string  `json:"type"`
}

// NodeID returns "model:layer:index".
func NodeID(modelID string, unit, index int) string {
	return fmt.Sprintf("%s:%d:%d", modelID, unit, index)
}

// BuildLayerDocument assembles the document of one unit. Positions and
// weights are rounded to four decimals. Empty labels are omitted.
func BuildLayerDocument(model *dataset.Model, unit int, artifact *core.GraphArtifact, labels core.LabelRecord, params embed.Params, computedAt time.Time) (*LayerDocument, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	n := len(artifact.Positions)
	if err := core.ValidateGraphArtifact(artifact, n); err != nil {
		return nil, err
	}

	nodes := make([]Node, n)
	labeled := 0
	for i, pos := range artifact.Positions {
		nodes[i] = Node{
			ID:        NodeID(model.ID, unit, i),
			FeatureID: FeatureID{ModelID: model.ID, Layer: unit, Index: i},
			Position:  [3]float64{round4(pos[0]), round4(pos[1]), round4(pos[2])},
		}
		if label := labels[i]; label != "" {
			nodes[i].Label = label
			labeled++
		}
	}

	edges := make([]Edge, len(artifact.Edges))
	for i, e := range artifact.Edges {
		edges[i] = Edge{
			ID:     fmt.Sprintf("edge-%d-%d", unit, i),
			Source: NodeID(model.ID, unit, e.Source),
			Target: NodeID(model.ID, unit, e.Target),
			Weight: round4(e.Weight),
			Type:   EdgeType,
		}
	}

	lo, hi := artifact.Positions.Bounds()
	return &LayerDocument{
		Metadata: Metadata{
			ModelID:      model.ID,
			Layers:       []int{unit},
			SourceID:     model.SourceID(unit),
			FeatureCount: n,
			EdgeCount:    len(edges),
			LabeledCount: labeled,
			Bounds: Bounds{
				Min: [3]float64{float64(lo[0]), float64(lo[1]), float64(lo[2])},
				Max: [3]float64{float64(hi[0]), float64(hi[1]), float64(hi[2])},
			},
			EmbedParams:     params,
			PipelineVersion: PipelineVersion,
			ComputedAt:      computedAt.UTC(),
		},
		Nodes: nodes,
		Edges: edges,
	}, nil
}

func round4(v float32) float64 {
	return math.Round(float64(v)*1e4) / 1e4
}
