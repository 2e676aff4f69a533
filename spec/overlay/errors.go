package overlay

import (
	"errors"
)

// Tally kinds for operation-level errors. Recoverable kinds are counted and
// the workload continues; structural kinds abort the run.
const (
	KindKeyNotFound     = "KeyNotFound"
	KindRoutingDiverged = "RoutingDiverged"
	KindOverlayEmpty    = "OverlayEmpty"
	KindIdFormat        = "IdFormat"
	KindDuplicateID     = "DuplicateId"
	KindCsvSchema       = "CsvSchema"
)

var (
	ErrKeyNotFound     = errorDef("overlay/kv: key is not resident at the responsible node", KindKeyNotFound, true)
	ErrRoutingDiverged = errorDef("overlay/route: hop budget exceeded before delivery", KindRoutingDiverged, true)
	ErrOverlayEmpty    = errorDef("overlay: operation issued before any node joined", KindOverlayEmpty, false)
	ErrIdFormat        = errorDef("overlay/ident: identifier does not fit the configured width", KindIdFormat, false)
	ErrDuplicateID     = errorDef("overlay/membership: node identifier already taken", KindDuplicateID, false)

	ErrNodeGone        = errorDef("overlay/membership: node is not part of the overlay", "", false)
	ErrNodeNoSuccessor = errorDef("overlay/membership: node has no successor, possibly broken ring", "", false)
)

// Kind maps err to its tally kind, unwrapping as needed. Empty string means
// the error has no operation-level classification.
func Kind(err error) string {
	for sentinel, kind := range kindMap {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// Recoverable reports whether the workload may continue past err.
func Recoverable(err error) bool {
	for sentinel, ok := range recoverableMap {
		if errors.Is(err, sentinel) {
			return ok
		}
	}
	return false
}

var (
	kindMap        = map[error]string{}
	recoverableMap = map[error]bool{}
)

func errorDef(str, kind string, recoverable bool) error {
	err := errors.New(str)
	if kind != "" {
		kindMap[err] = kind
	}
	recoverableMap[err] = recoverable
	return err
}
