package models

import (
	"time"
)

type BatchStatus string

const (
	BatchQueued     BatchStatus = "queued"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
)

type ConversionStatus string

const (
	ConversionSuccess ConversionStatus = "success"
	ConversionError   ConversionStatus = "error"
)

// ConversionResult is the outcome of converting one file. Exactly one
// of ResultURL/ErrorMessage is populated, matching Status.
type ConversionResult struct {
	Status       ConversionStatus  `json:"status"`
	TaskID       string            `json:"task_id,omitempty"`
	ResultURL    string            `json:"result_url,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// FileMeta is per-file metadata captured at batch submission time.
// Read-only after creation.
type FileMeta struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Hash        string `json:"hash"`
}

// Batch groups files submitted together for the same operation and
// options. Owned and mutated exclusively by the batch coordinator;
// everyone else reads snapshots.
type Batch struct {
	ID         string
	Operation  string
	Options    map[string]string
	Files      []FileMeta
	TotalFiles int
	Completed  int
	Failed     int
	Results    []ConversionResult
	Status     BatchStatus
	TotalSize  int64
	CreatedAt  time.Time
}

// Clone returns a deep copy of the batch for status reads.
func (b *Batch) Clone() *Batch {
	cp := *b
	cp.Files = append([]FileMeta(nil), b.Files...)
	cp.Results = make([]ConversionResult, len(b.Results))
	copy(cp.Results, b.Results)
	if b.Options != nil {
		cp.Options = make(map[string]string, len(b.Options))
		for k, v := range b.Options {
			cp.Options[k] = v
		}
	}
	return &cp
}

// BatchResult summarizes a fully settled batch.
type BatchResult struct {
	BatchID    string             `json:"batch_id"`
	TotalFiles int                `json:"total_files"`
	Completed  int                `json:"completed"`
	Failed     int                `json:"failed"`
	Results    []ConversionResult `json:"results"`
	ZipURL     string             `json:"zip_url,omitempty"`
}
