// Package flatten implements the record flattener for stage one: it turns
// the nested user records returned by the LMS API into flat rows with
// canonical column names, and consolidates the open-ended custom-field
// entries into a single structured column.
package flatten

import (
	"fmt"

	"lmsetl/internal/dataset"
	"lmsetl/internal/fault"
	"lmsetl/pkg/records"
)

const (
	// SourceIDField is the raw API field that becomes the upsert key.
	SourceIDField = "id"

	// KeyColumn is the canonical upsert key column.
	KeyColumn = "lms_user_id"

	// CustomFieldsColumn holds the consolidated custom-field mapping.
	CustomFieldsColumn = "custom_fields"

	// customFieldsKey is the raw sub-structure carrying per-record custom
	// fields with dynamically named keys.
	customFieldsKey = "customFields"
)

// envelopeKeys are the top-level pagination/bookkeeping keys of the list
// response. They are not user data and are stripped before flattening.
var envelopeKeys = []string{"totalItems", "limit", "offset", "returnedItems"}

// renames maps raw API field names onto the tracking table's canonical
// column names. The slice form keeps the output column order stable across
// runs; fields not listed here carry through under their original name.
var renames = []struct{ from, to string }{
	{"id", "lms_user_id"},
	{"departmentId", "department_id"},
	{"firstName", "first_name"},
	{"middleName", "middle_name"},
	{"lastName", "last_name"},
	{"username", "user_name"},
	{"password", "password"},
	{"emailAddress", "email_address"},
	{"externalId", "illum_id"},
	{"ccEmailAddresses", "cc_email_addresses"},
	{"languageId", "language_id"},
	{"gender", "gender"},
	{"address", "address"},
	{"address2", "address_2"},
	{"city", "city"},
	{"provinceId", "province_id"},
	{"countryId", "country_id"},
	{"postalCode", "postal_code"},
	{"phone", "phone"},
	{"employeeNumber", "employee_number"},
	{"location", "location"},
	{"jobTitle", "job_title"},
	{"referenceNumber", "reference_number"},
	{"dateHired", "date_hired"},
	{"dateTerminated", "date_terminated"},
	{"dateEdited", "date_edited"},
	{"dateAdded", "date_added"},
	{"lastLoginDate", "last_login_date"},
	{"notes", "notes"},
	{"roleIds", "role_ids"},
	{"activeStatus", "active_status"},
	{"isLearner", "is_learner"},
	{"isAdmin", "is_admin"},
	{"isInstructor", "is_instructor"},
	{"isManager", "is_manager"},
	{"supervisorId", "supervisor_id"},
	{"hasUsername", "has_user_name"},
}

// renameOf is the lookup form of renames.
var renameOf = func() map[string]string {
	m := make(map[string]string, len(renames))
	for _, r := range renames {
		m[r.from] = r.to
	}
	return m
}()

// Users extracts the raw user records from one list-response page,
// dropping the pagination envelope. A payload without a "users" array is a
// malformed response.
func Users(payload map[string]any) ([]map[string]any, error) {
	for _, k := range envelopeKeys {
		delete(payload, k)
	}
	raw, ok := payload["users"]
	if !ok {
		return nil, fmt.Errorf("list response has no users array")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("users is %T, want array", raw)
	}
	out := make([]map[string]any, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("users[%d] is %T, want object", i, it)
		}
		out = append(out, m)
	}
	return out, nil
}

// Flatten projects raw user records into a tabular dataset.
//
// The output column set is the union across all records: canonical names in
// rename-table order first, unrenamed extras in first-seen order, and the
// consolidated custom_fields column last. Every row carries the full column
// set (missing scalars become nil; custom_fields degrades to an empty map),
// so the shape is schema-stable within a run regardless of which fields any
// individual record happened to include. Row order matches input order.
//
// Records missing the identity field are skipped; flattening continues so
// the returned fault reports the full skipped-row count alongside the
// usable dataset.
func Flatten(raw []map[string]any) (*dataset.Dataset, error) {
	seen := make(map[string]bool)
	var known, extra []string
	rows := make([]records.Record, 0, len(raw))
	var bad []fault.RowError

	for i, src := range raw {
		rec := make(records.Record, len(src))
		custom := map[string]any{}

		for k, v := range src {
			if k == customFieldsKey {
				if m, ok := v.(map[string]any); ok {
					for ck, cv := range m {
						// Absent custom fields get no entry, not a null
						// placeholder; only present keys are merged.
						if cv != nil {
							custom[ck] = cv
						}
					}
				}
				continue
			}
			col := k
			if to, ok := renameOf[k]; ok {
				col = to
			} else if !seen[col] {
				extra = append(extra, col)
			}
			seen[col] = true
			rec[col] = v
		}
		rec[CustomFieldsColumn] = custom

		if rec.IsEmpty(KeyColumn) {
			bad = append(bad, fault.RowError{
				Index:  i,
				Column: KeyColumn,
				Reason: fmt.Sprintf("source record missing %q", SourceIDField),
			})
			continue
		}
		rows = append(rows, rec)
	}

	for _, r := range renames {
		if seen[r.to] {
			known = append(known, r.to)
		}
	}
	cols := append(known, extra...)
	cols = append(cols, CustomFieldsColumn)

	d := dataset.New(cols)
	for _, rec := range rows {
		// Schema-stable shape: every declared column exists on every row.
		for _, c := range d.Columns {
			if !rec.Has(c) {
				rec[c] = nil
			}
		}
		d.Append(rec)
	}

	if len(bad) > 0 {
		return d, fault.NewRows("extract", fault.RowData, bad)
	}
	return d, nil
}
