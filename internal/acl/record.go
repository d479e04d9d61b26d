package acl

import "sort"

// Record is the wire/storage representation of an access control list. It is
// the form ACLs take in request payloads and in the entries column of the
// access_controls table.
type Record struct {
	Owner   string        `json:"owner,omitempty"`
	Entries []RecordEntry `json:"entries,omitempty"`
}

// RecordEntry is the wire/storage representation of one access control
// entry, keyed by its permission name.
type RecordEntry struct {
	Permission string   `json:"permission"`
	Guest      bool     `json:"guest"`
	Users      []string `json:"users,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	Groups     []string `json:"groups,omitempty"`
}

// RecordFactory builds a Record from an owner and an entry map, with entries
// sorted by permission name for a stable wire form.
func RecordFactory(owner string, entries map[string]*Entry) *Record {
	rec := &Record{Owner: owner}
	permissions := make([]string, 0, len(entries))
	for permission := range entries {
		permissions = append(permissions, permission)
	}
	sort.Strings(permissions)
	for _, permission := range permissions {
		entry := entries[permission]
		rec.Entries = append(rec.Entries, RecordEntry{
			Permission: permission,
			Guest:      entry.Guest,
			Users:      append([]string(nil), entry.Users...),
			Roles:      append([]string(nil), entry.Roles...),
			Groups:     append([]string(nil), entry.Groups...),
		})
	}
	return rec
}
