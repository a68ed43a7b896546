package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/san-kum/dynid/internal/models"
)

func SaveCheckpoint(path string, cp *models.Checkpoint) error {
	return writeJSON(path, cp)
}

func LoadCheckpoint(path string) (*models.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return &cp, nil
}
