package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	Run        *RunMetadata  `json:"run"`
	Losses     []float64     `json:"losses"`
	Validation *Trajectories `json:"validation,omitempty"`
}

// Export bundles a run's metadata, loss history and, when present, its
// validation trajectories into one JSON document.
func (s *Store) Export(id string, w io.Writer) error {
	meta, err := s.Load(id)
	if err != nil {
		return err
	}
	losses, err := s.LoadLosses(id)
	if err != nil {
		return err
	}
	data := ExportData{Run: meta, Losses: losses}
	if tr, err := s.LoadValidation(id); err == nil {
		data.Validation = tr
	} else if !os.IsNotExist(err) {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (s *Store) ExportFile(id, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.Export(id, f); err != nil {
		return err
	}
	return f.Close()
}
