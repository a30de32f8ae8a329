package badger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/horus/core"
)

// Key prefixes for different data types
const (
	stageRecordPrefix   = "stgrec"
	stageArtifactPrefix = "stgart"
	labelJournalPrefix  = "lblprt"
)

// makeRecordKey generates the key for a stage completion record.
// Format: prefix:dataset:unit:stage
func makeRecordKey(key core.CacheKey) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:%s", stageRecordPrefix, key.DatasetID, key.Unit, key.Stage))
}

// makeArtifactKey generates the key for a stage artifact.
// Format: prefix:dataset:unit:stage
func makeArtifactKey(key core.CacheKey) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:%s", stageArtifactPrefix, key.DatasetID, key.Unit, key.Stage))
}

// makeLabelKey generates the journal key for one feature label.
// Format: prefix:dataset:unit:index, with the index zero-padded so keys sort numerically.
func makeLabelKey(datasetID string, unit, index int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:%08d", labelJournalPrefix, datasetID, unit, index))
}

// makePartialLabelKey generates the journal prefix for a unit.
// Format: prefix:dataset:unit:
func makePartialLabelKey(datasetID string, unit int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:", labelJournalPrefix, datasetID, unit))
}

// parseLabelIndex extracts the feature index from a journal key.
func parseLabelIndex(key []byte) (int, error) {
	s := string(key)
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return 0, fmt.Errorf("malformed label key %q", s)
	}
	return strconv.Atoi(s[i+1:])
}
