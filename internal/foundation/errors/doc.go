// Package errors provides the classified error primitives used across docdelta.
//
// Every failure that leaves a package is a ClassifiedError carrying a category,
// a severity and a retry strategy, plus a small context map that ends up in
// structured logs. The category decides how the CLI maps the error to an exit
// code and whether the engine aborts the build or merely disables incremental
// reuse for one unit.
//
// Example usage:
//
//	err := errors.GraphError("conflicting dependency type definition").
//		WithContext("type", def.Name).
//		WithCause(cause).
//		Build()
package errors
