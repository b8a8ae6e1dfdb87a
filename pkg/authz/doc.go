// Package authz is a policy based authorization engine.
//
// A Policy is a named list of Requirements. Requirements are plain data; each
// kind is decided by a Handler looked up in the Engine's handler table. A
// policy allows only when every requirement succeeds. Anything the engine
// cannot decide (unknown policy, missing handler, panicking handler) denies.
//
// Typical wiring:
//
//	reg := authz.NewRegistry()
//	_ = authz.RegisterDefaults(reg)
//	engine, err := authz.NewEngine(reg)
//	if err != nil {
//		// fail startup: a policy references a kind with no handler
//	}
//	if err := engine.Authorize(ctx, claims, authz.PolicyAdminOnly).Err(); err != nil {
//		// errors.Is(err, authz.ErrForbidden)
//	}
package authz
