package domain

import "time"

// BatchStatus summarizes how the last batch was handled.
type BatchStatus struct {
	BatchID    string    `json:"batch_id"`
	Outcome    string    `json:"outcome"`
	Decoded    int       `json:"decoded"`
	Processed  int       `json:"processed"`
	Published  int       `json:"published"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
