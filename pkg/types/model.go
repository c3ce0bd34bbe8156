package types

// ModelInfo describes one trained model file plus the metrics parsed from its
// sibling info file.
type ModelInfo struct {
	Path         string  `json:"path"`
	LastModified int64   `json:"last_modified"` // unix seconds
	Precision    float64 `json:"p"`
	Recall       float64 `json:"r"`
	MAP50        float64 `json:"map50"`
	MAP5095      float64 `json:"map50_95"`
	HasReport    bool    `json:"has_report"`
}

// DeleteModelRequest names the model file to remove.
type DeleteModelRequest struct {
	Name string `json:"name"`
}
