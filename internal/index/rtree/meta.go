package rtree

import (
	"encoding/json"
	"fmt"
	"os"
)

// sidecarRecord is the persisted shape of one point entry: surrogate id ->
// {coords, payload}.
type sidecarRecord struct {
	SurrogateID uint32         `json:"surrogate_id"`
	Lon         float64        `json:"lon"`
	Lat         float64        `json:"lat"`
	Payload     map[string]any `json:"payload"`
}

func readSidecar(path string) ([]sidecarRecord, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rtree: read sidecar: %w", err)
	}
	if len(buf) == 0 {
		return nil, nil
	}
	var records []sidecarRecord
	if err := json.Unmarshal(buf, &records); err != nil {
		return nil, fmt.Errorf("rtree: decode sidecar: %w", err)
	}
	return records, nil
}

// persist rewrites the sidecar metadata from the current in-memory entry
// set.
func (idx *Index) persist() error {
	records := make([]sidecarRecord, 0, len(idx.entries))
	for _, e := range idx.entries {
		records = append(records, sidecarRecord{SurrogateID: e.surrogateID, Lon: e.lon, Lat: e.lat, Payload: e.payload})
	}
	buf, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("rtree: encode sidecar: %w", err)
	}
	if err := os.WriteFile(idx.metaPath, buf, 0o644); err != nil {
		return fmt.Errorf("rtree: write sidecar: %w", err)
	}
	return nil
}
