package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the orchestrator matches exactly one of these with errors.Is.
var (
	ErrVideoLoad      = errors.New("video load error")
	ErrInitialization = errors.New("initialization error")
	ErrPredictorCall  = errors.New("predictor call error")
	ErrValidation     = errors.New("validation error")
	ErrExport         = errors.New("export error")
)

var (
	ErrNoVideo             = fmt.Errorf("%w: no video loaded", ErrValidation)
	ErrEmptyObjectName     = fmt.Errorf("%w: object name cannot be empty", ErrValidation)
	ErrDuplicateObjectName = fmt.Errorf("%w: object name already exists", ErrValidation)
	ErrUnknownObject       = fmt.Errorf("%w: object not found", ErrValidation)
	ErrNoObjectSelected    = fmt.Errorf("%w: no object selected", ErrValidation)
	ErrNothingToUndo       = fmt.Errorf("%w: nothing to undo", ErrValidation)
	ErrFrameOutOfRange     = fmt.Errorf("%w: frame index out of range", ErrValidation)
	ErrPointOutsideFrame   = fmt.Errorf("%w: point is outside the frame", ErrValidation)
	ErrNotInitialized      = fmt.Errorf("%w: annotation has not started", ErrValidation)
	ErrBusy                = fmt.Errorf("%w: another operation is in progress", ErrValidation)
)
