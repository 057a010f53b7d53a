package models

import (
	"strconv"

	dErrors "taxregistry/pkg/domain-errors"
)

// TID is the registry-assigned taxpayer identifier. The first taxpayer ever
// created receives 0 and no value is handed out twice.
type TID uint64

// ParseTID parses a decimal, non-negative identifier.
func ParseTID(s string) (TID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "tid is required")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "tid must be a non-negative integer")
	}
	return TID(n), nil
}

func (t TID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
