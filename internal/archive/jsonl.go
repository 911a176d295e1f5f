package archive

import (
	"bytes"
	"encoding/json"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// EncodeJSONL renders edges as newline-delimited JSON, one edge per line
func EncodeJSONL(edges []models.LiveEdge) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, edge := range edges {
		if err := enc.Encode(edge); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
