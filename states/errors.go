package states

import "errors"

var ErrDuplicateSlot = errors.New("duplicate slot")
