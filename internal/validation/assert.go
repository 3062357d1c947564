// Package validation holds the fail-fast checks constructors run on their
// mandatory dependencies.
package validation

import (
	"fmt"
	"reflect"
)

// AssertNotNil panics if ptr is nil.
//
// Usage:
//
//	validation.AssertNotNil(l1, "campaign l1 cache")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

// AssertDependency panics if dep is a nil interface, or an interface holding
// a nil pointer, map, slice, chan or func.
//
// Usage:
//
//	validation.AssertDependency(source, "campaign source")
func AssertDependency(dep any, name string) {
	if isNil(dep) {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Panics are reserved for wiring mistakes; runtime failures are returned as errors.
