// Package iam implements the access-control core of hscapi.
//
//   - Synchronizer reconciles role groups and their grants with the role
//     registry in package auth.
//   - Bootstrap fills the resource catalog component by component, then
//     runs the reconcile once.
//   - Assigner moves a user between role groups when their role changes.
//   - Guard decides role-level access; Can checks grants through casbin.
//   - Authenticator handles password login, bearer tokens and logout.
//
// Request flow:
//
//	Request → middleware.Authn → Authenticator.Resolve → principal (role, groups)
//	       ↓
//	   RequireRole → Guard.Authorize      RequirePermission → Can → casbin (read-only)
//
// Policy rows are written only by the stores, inside transactions. The
// casbin enforcer is reloaded after each committed change and is never
// mutated in the request path.
package iam
