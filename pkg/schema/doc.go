// Package schema validates booking form data before it is persisted.
//
// Field-level rules are declared as go-playground/validator tags on the
// domain types. Structural rules of the service tree (a single start root,
// unique IDs, services as leaves) and of the question union are checked by
// hand on top of that.
//
//	res := schema.Validate(data)
//	if !res.IsValid {
//	    // res.Errors holds one message per failure
//	}
//
// Validate never fails on its first problem: all failures are collected so
// an editor can show them together.
package schema
