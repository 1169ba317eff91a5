package trd

import "fmt"

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }

// ErrInvalidDetector is returned for detector numbers outside [0, NDet).
type ErrInvalidDetector struct {
	Detector int
}

func (e *ErrInvalidDetector) Error() string {
	return fmt.Sprintf("invalid detector number %d", e.Detector)
}

// ErrChamberAbsent is returned when a chamber is a hole of the active
// geometry.
type ErrChamberAbsent struct {
	Detector int
	Sector   int
	Chamber  int
}

func (e *ErrChamberAbsent) Error() string {
	return fmt.Sprintf("detector %d (sector %d, chamber %d) is not installed", e.Detector, e.Sector, e.Chamber)
}

// ErrHistogramMismatch is returned when the number of calibration groups
// found in the accumulated histograms does not match the calibration mode.
type ErrHistogramMismatch struct {
	Kind     string
	Expected int
	Found    int
}

func (e *ErrHistogramMismatch) Error() string {
	return fmt.Sprintf("%s histograms: the mode of calibration expects %d groups, found %d", e.Kind, e.Expected, e.Found)
}

// ErrUnknownQuantity is returned for calibration quantity names that are
// not part of the calibration database contract.
type ErrUnknownQuantity struct {
	Name string
}

func (e *ErrUnknownQuantity) Error() string {
	return fmt.Sprintf("unknown calibration quantity %q", e.Name)
}
