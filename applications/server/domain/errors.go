package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBatch          = errors.New("empty batch")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrStorageWrite        = errors.New("storage write failed")
	ErrScan                = errors.New("scan invocation failed")
	ErrStorageInit         = errors.New("storage initialization failed")
	ErrPoolStopped         = errors.New("worker pool stopped")
)

type Stage string

const (
	StageStore   Stage = "store"
	StageScan    Stage = "scan"
	StageProcess Stage = "process"
)

// ItemError is a processing failure of a single batch item.
type ItemError struct {
	Name  string
	Stage Stage
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", MessageProcessingFailed, e.Name, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func (e *ItemError) Is(target error) bool {
	switch target {
	case ErrStorageWrite:
		return e.Stage == StageStore
	case ErrScan:
		return e.Stage == StageScan
	}
	return false
}

// Message is the client facing description of the failure, without the cause.
func (e *ItemError) Message() string {
	return fmt.Sprintf("%s: %s", MessageProcessingFailed, e.Name)
}
