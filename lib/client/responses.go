package client

import (
	"encoding/json"
	"errors"

	"github.com/stagegate/stagegate-go/lib/result"
)

// The provider's response payloads carry at most one of an ok slot and an
// err slot. The adapters below turn a decoded payload into a Result and
// treat both-present or both-absent as a broken response.

var errNoSlot = errors.New("response carried neither the ok nor the err slot")
var errBothSlots = errors.New("response carried both the ok and the err slot")

// twoSlot adapts a payload with both slots declared.
func twoSlot[T, E any](ok *T, errv *E) (result.Result[T, E], error) {
	var zero result.Result[T, E]
	switch {
	case ok != nil && errv != nil:
		return zero, deserializationErr(errBothSlots)
	case ok != nil:
		return result.Ok[T, E](*ok), nil
	case errv != nil:
		return result.Err[T, E](*errv), nil
	default:
		return zero, deserializationErr(errNoSlot)
	}
}

// twoSlotPtr is twoSlot for ok payloads that stay behind a pointer (e.g.
// affine tokens, which must not be copied).
func twoSlotPtr[T, E any](ok *T, errv *E) (result.Result[*T, E], error) {
	var zero result.Result[*T, E]
	switch {
	case ok != nil && errv != nil:
		return zero, deserializationErr(errBothSlots)
	case ok != nil:
		return result.Ok[*T, E](ok), nil
	case errv != nil:
		return result.Err[*T, E](*errv), nil
	default:
		return zero, deserializationErr(errNoSlot)
	}
}

// okSlot adapts a payload whose err side is the unit type: the slot must
// be present.
func okSlot[T any](ok *T) (result.Result[T, result.Unit], error) {
	var zero result.Result[T, result.Unit]
	if ok == nil {
		return zero, deserializationErr(errNoSlot)
	}
	return result.Ok[T, result.Unit](*ok), nil
}

// errSlot adapts a payload whose ok side is the unit type: an absent slot
// is success.
func errSlot[E any](errv *E) result.Result[result.Unit, E] {
	if errv != nil {
		return result.Err[result.Unit, E](*errv)
	}
	return result.Ok[result.Unit, E](result.Unit{})
}

// decodeRet decodes a response payload into the per-step slot struct.
func decodeRet(ret json.RawMessage, into any) error {
	if len(ret) == 0 {
		return deserializationErr(errors.New("response carried no payload"))
	}
	if err := json.Unmarshal(ret, into); err != nil {
		return deserializationErr(err)
	}
	return nil
}

// tokenRet is the shared terminal payload: a freshly issued session token.
type tokenRet struct {
	Token *Token `json:"token"`
}
