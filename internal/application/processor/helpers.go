package processor

import (
	"encoding/json"
	"time"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

func success(nodeID string, start time.Time, output map[string]interface{}) ports.ProcessorOutput {
	now := time.Now()
	return ports.ProcessorOutput{
		NodeID:  nodeID,
		Success: true,
		Output:  output,
		Metadata: ports.ProcessorMetadata{
			StartedAt:   start,
			CompletedAt: now,
			Duration:    now.Sub(start),
		},
	}
}

func failure(nodeID string, start time.Time, nerr *domain.NodeError) ports.ProcessorOutput {
	now := time.Now()
	return ports.ProcessorOutput{
		NodeID:  nodeID,
		Success: false,
		Error:   nerr,
		Metadata: ports.ProcessorMetadata{
			StartedAt:   start,
			CompletedAt: now,
			Duration:    now.Sub(start),
		},
	}
}

func suspend(nodeID string, start time.Time, signal ports.Signal) ports.ProcessorOutput {
	now := time.Now()
	return ports.ProcessorOutput{
		NodeID:  nodeID,
		Success: false,
		Signal:  signal,
		Metadata: ports.ProcessorMetadata{
			StartedAt:   start,
			CompletedAt: now,
			Duration:    now.Sub(start),
		},
	}
}

// toMap converts a struct into the generic map shape output mappings resolve
// against
func toMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
