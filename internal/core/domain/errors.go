package domain

import (
	"errors"
	"fmt"
)

// Pipeline failure kinds. Every boundary operation reports exactly one of
// them so transports can render a structured error.
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrStorageWrite         = errors.New("storage write failed")
	ErrRecordCreation       = errors.New("record creation failed")
	ErrMalformedModelOutput = errors.New("malformed model output")
	ErrSchemaValidation     = errors.New("schema validation failed")
	ErrPersistence          = errors.New("asset persistence failed")
	ErrUnknown              = errors.New("unknown error")

	ErrDiagramNotFound   = errors.New("diagram not found")
	ErrAssetNotFound     = errors.New("asset not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTemporary         = errors.New("temporary failure")
)

var kindNames = []struct {
	kind error
	name string
}{
	{ErrUnsupportedMediaType, "UnsupportedMediaType"},
	{ErrStorageWrite, "StorageWriteError"},
	{ErrRecordCreation, "RecordCreationError"},
	{ErrMalformedModelOutput, "MalformedModelOutput"},
	{ErrSchemaValidation, "SchemaValidationError"},
	{ErrPersistence, "PersistenceError"},
	{ErrDiagramNotFound, "DiagramNotFound"},
	{ErrAssetNotFound, "AssetNotFound"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrTemporary, "TemporaryFailure"},
	{ErrUnknown, "UnknownError"},
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName returns the taxonomy name of the first kind found in err's chain.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "UnknownError"
}
