package types

import "fmt"

// Category names an independent job queue.
type Category string

const (
	CategoryEmail  Category = "email"
	CategoryAudit  Category = "audit"
	CategoryReport Category = "report"
)

// Job names produced by the users service.
const (
	JobWelcomeEmail   = "welcome"
	JobAuditLog       = "log"
	JobDeletionReport = "deletion-report"
)

var AllCategories = []Category{
	CategoryEmail,
	CategoryAudit,
	CategoryReport,
}

func (c Category) String() string {
	return string(c)
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown job category %q", s)
	}
	return c, nil
}
