package timeoff

import "strings"

// =============================================================================
// STATUS LOOKUP - Free-text source status -> Status
// =============================================================================

// StatusTable maps source status strings to a Status. Keys are compared
// case-insensitively; anything missing from the table, including the empty
// string, is Pending.
type StatusTable struct {
	entries map[string]Status
}

func NewStatusTable(entries map[string]Status) StatusTable {
	t := StatusTable{entries: make(map[string]Status, len(entries))}
	for k, v := range entries {
		t.entries[normalizeStatusKey(k)] = v
	}
	return t
}

// DefaultStatusTable is the lookup used by the source system.
func DefaultStatusTable() StatusTable {
	return NewStatusTable(map[string]Status{
		"validato":  StatusApproved,
		"approvata": StatusApproved,
		"annullato": StatusRejected,
		"rifiutata": StatusRejected,
	})
}

func (t StatusTable) Lookup(s string) Status {
	if st, ok := t.entries[normalizeStatusKey(s)]; ok {
		return st
	}
	return StatusPending
}

func (t StatusTable) Len() int { return len(t.entries) }

func normalizeStatusKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// StatusLabels is the reverse direction: the string a repository writes for a Status.
type StatusLabels map[Status]string

func DefaultStatusLabels() StatusLabels {
	return StatusLabels{
		StatusPending:  "in attesa",
		StatusApproved: "validato",
		StatusRejected: "annullato",
	}
}

func (l StatusLabels) Label(s Status) string {
	if v, ok := l[s]; ok {
		return v
	}
	return string(s)
}
