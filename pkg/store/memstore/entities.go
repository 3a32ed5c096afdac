package memstore

import (
	"fmt"

	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// clone returns a shallow copy of e so callers can't mutate memstore's
// internal state through a pointer returned from Read or Create.
func clone(e store.Entity) store.Entity {
	switch v := e.(type) {
	case *store.Submission:
		cp := *v
		return &cp
	case *store.Deposit:
		cp := *v
		return &cp
	case *store.Repository:
		cp := *v
		return &cp
	case *store.RepositoryCopy:
		cp := *v
		return &cp
	default:
		panic(fmt.Sprintf("memstore: unknown entity type %T", e))
	}
}

func assignID(e store.Entity, id string) error {
	switch v := e.(type) {
	case *store.Submission:
		v.ID = id
	case *store.Deposit:
		v.ID = id
	case *store.Repository:
		v.ID = id
	case *store.RepositoryCopy:
		v.ID = id
	default:
		return fmt.Errorf("memstore: unknown entity type %T", e)
	}
	return nil
}

func bumpVersion(e store.Entity) error {
	switch v := e.(type) {
	case *store.Submission:
		v.Version++
	case *store.Deposit:
		v.Version++
	case *store.Repository:
		v.Version++
	case *store.RepositoryCopy:
		v.Version++
	default:
		return fmt.Errorf("memstore: unknown entity type %T", e)
	}
	return nil
}

// matchesAttribute compares one field on row against value. field
// names the same snake_case column name gormstore.FindByAttribute
// expects, so callers can use one set of field names against either
// backend; add a case here rather than reaching for reflection.
func matchesAttribute(row store.Entity, field string, value any) (bool, error) {
	switch v := row.(type) {
	case *store.Submission:
		switch field {
		case "submission_status":
			return string(v.SubmissionStatus) == fmt.Sprint(value), nil
		case "aggregated_deposit_status":
			return string(v.AggregatedDepositStatus) == fmt.Sprint(value), nil
		}
	case *store.Deposit:
		switch field {
		case "submission_id":
			return v.SubmissionID == fmt.Sprint(value), nil
		case "repository_id":
			return v.RepositoryID == fmt.Sprint(value), nil
		case "deposit_status":
			return string(v.DepositStatus) == fmt.Sprint(value), nil
		}
	case *store.Repository:
		switch field {
		case "name":
			return v.Name == fmt.Sprint(value), nil
		case "repository_key":
			return v.RepositoryKey == fmt.Sprint(value), nil
		}
	case *store.RepositoryCopy:
		switch field {
		case "submission_id":
			return v.SubmissionID == fmt.Sprint(value), nil
		case "deposit_id":
			return v.DepositID == fmt.Sprint(value), nil
		case "copy_status":
			return string(v.CopyStatus) == fmt.Sprint(value), nil
		}
	}
	return false, fmt.Errorf("memstore: unsupported attribute %q on %T", field, row)
}
