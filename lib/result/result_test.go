package result

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariants(t *testing.T) {
	ok := Ok[int, string](7)
	assert.True(t, ok.IsOk())
	assert.False(t, ok.IsErr())
	v, present := ok.Value()
	assert.True(t, present)
	assert.Equal(t, 7, v)

	bad := Err[int, string]("nope")
	assert.True(t, bad.IsErr())
	e, present := bad.ErrValue()
	assert.True(t, present)
	assert.Equal(t, "nope", e)
}

func TestUnwrapPanics(t *testing.T) {
	assert.Panics(t, func() { Err[int, string]("boom").Unwrap() }, "Unwrap on Err panics")
	assert.Panics(t, func() { Ok[int, string](1).UnwrapErr() }, "UnwrapErr on Ok panics")
	assert.PanicsWithValue(t, "result: no token: denied", func() {
		Err[int, string]("denied").ExpectWith(func(e string) string { return "no token: " + e })
	})
	assert.Equal(t, 3, Ok[int, string](3).Expect("should not fire"))
}

func TestCombinators(t *testing.T) {
	r := Ok[int, string](21)

	doubled := Map(r, func(v int) int { return v * 2 })
	assert.Equal(t, 42, doubled.Unwrap())

	asString := Map(r, strconv.Itoa)
	assert.Equal(t, "21", asString.Unwrap())

	chained := AndThen(r, func(v int) Result[int, string] {
		if v > 10 {
			return Err[int, string]("too big")
		}
		return Ok[int, string](v)
	})
	assert.Equal(t, "too big", chained.UnwrapErr())

	mappedErr := MapErr(chained, func(e string) error { return errors.New(e) })
	assert.EqualError(t, mappedErr.UnwrapErr(), "too big")

	assert.Equal(t, "fallback", MapOr(chained, "fallback", strconv.Itoa))
	assert.Equal(t, "err=too big", MapOrElse(chained,
		func(e string) string { return "err=" + e },
		strconv.Itoa))
}

func TestInspect(t *testing.T) {
	var seen int
	var seenErr string

	Ok[int, string](5).
		Inspect(func(v int) { seen = v }).
		InspectErr(func(e string) { seenErr = e })
	assert.Equal(t, 5, seen)
	assert.Empty(t, seenErr)

	Err[int, string]("oops").
		Inspect(func(v int) { seen = -1 }).
		InspectErr(func(e string) { seenErr = e })
	assert.Equal(t, 5, seen, "Inspect must not fire on Err")
	assert.Equal(t, "oops", seenErr)
}

func TestCollapseAndAs(t *testing.T) {
	assert.Equal(t, "a", Collapse(Ok[string, string]("a")))
	assert.Equal(t, "b", Collapse(Err[string, string]("b")))

	swapped := As(Ok[int, string](9), errors.New("e"), "yes")
	assert.Equal(t, "yes", swapped.Unwrap())

	swappedErr := As(Err[int, string]("x"), errors.New("e"), "yes")
	assert.EqualError(t, swappedErr.UnwrapErr(), "e")

	assert.Equal(t, 0, Err[int, string]("x").UnwrapOr(0))
}
