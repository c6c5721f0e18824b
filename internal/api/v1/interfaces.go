// Package v1 is the tenant-scoped introspection API: flag records and the
// audit trail. It is a testing/onboarding surface, not part of the webhook
// contract proper.
package v1

import (
	"github.com/pathcanary/rollback-go/internal/domain"
)

// DataStore is the slice of the provider store the introspection API needs.
type DataStore interface {
	Flags() domain.FlagRepository
	Audit() domain.AuditRepository
}
