package models

import (
	"strings"
	"time"
)

// Park is a managed site. It is the top-level scoping unit for authorization:
// every permit, application and invoice hangs off a park either directly or
// through its application.
type Park struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Locations string    `db:"locations" json:"-"`
	Waiver    string    `db:"waiver" json:"waiver,omitempty"`
	ValidID   int       `db:"valid_id" json:"valid_id"`
	CreatedAt time.Time `db:"create_time" json:"created_at"`
	UpdatedAt time.Time `db:"change_time" json:"updated_at"`
}

// LocationList splits the stored newline-separated sub-locations.
func (p *Park) LocationList() []string {
	if strings.TrimSpace(p.Locations) == "" {
		return nil
	}
	raw := strings.Split(p.Locations, "\n")
	out := make([]string, 0, len(raw))
	for _, loc := range raw {
		if loc = strings.TrimSpace(loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// SetLocationList stores the given sub-locations as the newline-separated form.
func (p *Park) SetLocationList(locations []string) {
	p.Locations = strings.Join(locations, "\n")
}
