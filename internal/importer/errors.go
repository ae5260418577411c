package importer

import (
	"fmt"
	"strings"

	"github.com/archaur/archaur/internal/pkgbuild"
)

// ValidationError carries every validation and reference problem found
// in an upload so the caller can present a complete report.
type ValidationError struct {
	Result pkgbuild.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Result.Errors, "; "))
}

// PersistError wraps a failure inside the persistence phase. By the
// time it is returned, the transaction has been rolled back and blobs
// written during the attempt have been deleted.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist package: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
