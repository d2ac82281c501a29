package manifest

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// DecodeConfig decodes an image configuration blob.
func DecodeConfig(data []byte) (*v1.Image, error) {
	var config v1.Image
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid image config: %w", err)
	}

	return &config, nil
}

// SortedHistory returns the config history oldest first. Entries without a
// creation time sort before all dated entries; ties keep their original order.
func SortedHistory(config *v1.Image) []v1.History {
	if config == nil {
		return []v1.History{}
	}

	history := slices.Clone(config.History)
	if history == nil {
		return []v1.History{}
	}

	slices.SortStableFunc(history, func(a, b v1.History) int {
		return createdAt(a).Compare(createdAt(b))
	})

	return history
}

func createdAt(entry v1.History) time.Time {
	if entry.Created == nil {
		return time.Time{}
	}

	return *entry.Created
}
