package ports

import "time"

// RetentionPolicy bounds per-machine history kept in memory.
type RetentionPolicy struct {
	Horizon time.Duration `yaml:"horizon"`
	Floor   int           `yaml:"floor"`
}

// DefaultRetention keeps an hour of samples but never fewer than ten once ten exist.
var DefaultRetention = RetentionPolicy{Horizon: 60 * time.Minute, Floor: 10}

// ExportPolicy controls the historian export buffer.
type ExportPolicy struct {
	MaxQueueLen  int           `yaml:"queue_len"`
	MaxBatchSize int           `yaml:"batch_size"`
	IdleSleep    time.Duration `yaml:"idle_sleep"`

	OnQueueFull string `yaml:"on_queue_full"` // "drop", "block"
}
