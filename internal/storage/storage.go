package storage

import "mevscope/internal/model"

// Storage defines a sink for block reports.
type Storage interface {
	PutReport(report model.BlockReport) error
}
