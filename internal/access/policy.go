// Package access holds the role-based authorization policy. Decisions are
// pure functions of role, action and resource owner, evaluated before any
// external I/O.
package access

import (
	"medreport/internal/domain"
)

// Action is the closed set of gated operations.
type Action string

const (
	ActionIngest        Action = "ingest"
	ActionQueryOwn      Action = "query-own"
	ActionBrowseHistory Action = "browse-by-patient"
)

// Decide returns nil when the principal may perform the action, or
// ErrForbidden wrapped with the violated rule. The table is closed:
// patients ingest and query their own documents, doctors browse patient
// history, every other combination (including admin) is denied.
func Decide(p domain.Principal, action Action, resourceOwner string) error {
	switch action {
	case ActionIngest:
		if p.Role != domain.RolePatient {
			return domain.Forbiddenf("only patients can upload reports for diagnosis")
		}
		if resourceOwner != "" && resourceOwner != p.Username {
			return domain.Forbiddenf("patients can only upload into their own namespace")
		}
		return nil
	case ActionQueryOwn:
		if p.Role != domain.RolePatient {
			return domain.Forbiddenf("only patients can request a diagnosis")
		}
		if resourceOwner != p.Username {
			return domain.Forbiddenf("you cannot access another user's report")
		}
		return nil
	case ActionBrowseHistory:
		if p.Role != domain.RoleDoctor {
			return domain.Forbiddenf("only doctors can browse patient history")
		}
		return nil
	default:
		return domain.Forbiddenf("unknown action %q", action)
	}
}
