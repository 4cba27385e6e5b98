package domain

// DeltaItem is one line of a batched list edit. Exactly one of
// Affiliation or Role is set: affiliation edits address their target by
// identity, role edits by nickname. A delta only changes the targets it
// names; unmentioned identities keep their current state.
type DeltaItem struct {
	// Target is the identity or nickname as submitted. Identities may
	// arrive session-qualified and are normalized to their bare form.
	Target      string
	Affiliation *Affiliation
	Role        *Role
	Reason      string
}

func (i DeltaItem) IsAffiliationEdit() bool { return i.Affiliation != nil }
