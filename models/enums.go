package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ApplicationStatus is the review state of one forex card application.
//
// Single-record review moves Pending Maker -> Pending Checker -> Approved /
// Rejected, with Reopened as the correction re-entry point. The bulk pipeline
// owns Export Eligible -> Exported -> Approved / Discrepancy.
type ApplicationStatus string

const (
	ApplicationStatusPendingMaker   ApplicationStatus = "Pending Maker"
	ApplicationStatusPendingChecker ApplicationStatus = "Pending Checker"
	ApplicationStatusApproved       ApplicationStatus = "Approved"
	ApplicationStatusRejected       ApplicationStatus = "Rejected"
	ApplicationStatusReopened       ApplicationStatus = "Reopened"
	ApplicationStatusExportEligible ApplicationStatus = "Export Eligible"
	ApplicationStatusExported       ApplicationStatus = "Exported"
	ApplicationStatusDiscrepancy    ApplicationStatus = "Discrepancy"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPendingMaker, ApplicationStatusPendingChecker,
		ApplicationStatusApproved, ApplicationStatusRejected,
		ApplicationStatusReopened, ApplicationStatusExportEligible,
		ApplicationStatusExported, ApplicationStatusDiscrepancy:
		return true
	}
	return false
}

func (s *ApplicationStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*s = ApplicationStatus(v)
	case string:
		*s = ApplicationStatus(v)
	default:
		return fmt.Errorf("unsupported application status value %v", value)
	}
	return nil
}

func (s ApplicationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// reviewFieldsMutable reports whether itr_flag / lrs_amount_consumed may be
// edited in the given state.
func (s ApplicationStatus) reviewFieldsMutable() bool {
	return s == ApplicationStatusPendingMaker || s == ApplicationStatusReopened
}

// ReviewerRole is the dual-control role of a portal user.
type ReviewerRole string

const (
	ReviewerRoleMaker   ReviewerRole = "maker"
	ReviewerRoleChecker ReviewerRole = "checker"
)

func (r ReviewerRole) IsValid() bool {
	return r == ReviewerRoleMaker || r == ReviewerRoleChecker
}

func (r *ReviewerRole) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*r = ReviewerRole(v)
	case string:
		*r = ReviewerRole(v)
	default:
		return fmt.Errorf("unsupported reviewer role value %v", value)
	}
	return nil
}

func (r ReviewerRole) Value() (driver.Value, error) {
	return string(r), nil
}

// UserRole is the portal account role stored on users.
type UserRole string

const (
	UserRoleAdmin   UserRole = "A"
	UserRoleMaker   UserRole = "M"
	UserRoleChecker UserRole = "C"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleAdmin || r == UserRoleMaker || r == UserRoleChecker
}

// ReviewerRole maps an account role to its dual-control role.
func (r UserRole) ReviewerRole() (ReviewerRole, error) {
	switch r {
	case UserRoleMaker:
		return ReviewerRoleMaker, nil
	case UserRoleChecker:
		return ReviewerRoleChecker, nil
	}
	return "", errors.New("user has no reviewer role")
}

// BulkFileStatus tracks one exported batch through dual review.
type BulkFileStatus string

const (
	BulkFileStatusPending          BulkFileStatus = "Pending"
	BulkFileStatusMakerProcessed   BulkFileStatus = "Maker Processed"
	BulkFileStatusCheckerProcessed BulkFileStatus = "Checker Processed"
	BulkFileStatusReconciled       BulkFileStatus = "Reconciled"
)

func (s *BulkFileStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*s = BulkFileStatus(v)
	case string:
		*s = BulkFileStatus(v)
	default:
		return fmt.Errorf("unsupported bulk file status value %v", value)
	}
	return nil
}

func (s BulkFileStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// ReconciliationStatus is the dual-review outcome for one record.
type ReconciliationStatus string

const (
	ReconciliationStatusApproved    ReconciliationStatus = "Approved"
	ReconciliationStatusDiscrepancy ReconciliationStatus = "Discrepancy"
)

// CommentType distinguishes reviewer notes from system-written
// discrepancy comments.
type CommentType string

const (
	CommentTypeNote        CommentType = "note"
	CommentTypeDiscrepancy CommentType = "discrepancy"
)
