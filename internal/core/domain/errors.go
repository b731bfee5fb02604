package domain

import (
	"errors"
	"fmt"
)

var (
	ErrShipmentNotFound       = errors.New("shipment not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrPartyNotFound          = errors.New("party not found")
	ErrMissingRequiredParty   = errors.New("required party missing")
	ErrDocumentNotFound       = errors.New("document not found")
	ErrUnsupportedDocumentKey = errors.New("document key is not system-renderable")
	ErrNoVersionToApprove     = errors.New("no version to approve")
	ErrVersionNotFound        = errors.New("version not found")
	ErrRenderFailed           = errors.New("document render failed")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidInput           = errors.New("invalid input")
	ErrTemporary              = errors.New("temporary failure")
)

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
