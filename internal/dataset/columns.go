package dataset

import (
	"time"

	"github.com/hollowdata/gridstate/internal/schema"
)

// DefaultColumns is the built-in column set for the people table, used
// when no CUE definition directory is supplied. The email debounce keeps
// per-keystroke filtering from flooding the backend.
func DefaultColumns() *schema.Set {
	return schema.MustSet(
		schema.Column{Key: "name", Title: "Name", Sortable: true, Filter: schema.FilterText},
		schema.Column{Key: "email", Title: "Email", Sortable: true, Filter: schema.FilterText, Debounce: 300 * time.Millisecond},
		schema.Column{Key: "city", Title: "City", Filter: schema.FilterText},
		schema.Column{Key: "role", Title: "Role", Filter: schema.FilterSelect, Options: []string{"admin", "editor", "viewer"}},
		schema.Column{Key: "age", Title: "Age", Sortable: true},
	)
}
