package models

// Classification is the sync state of one entry id.
type Classification string

const (
	LocalOnly  Classification = "local-only"
	RemoteOnly Classification = "remote-only"
	Divergent  Classification = "divergent"
	Synced     Classification = "synced"
)

type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// SyncDiffRecord is the comparison result for one entry id. It is built
// fresh on every reconciliation and never stored. Local and Remote hold the
// decrypted snapshot of each side present; a field that failed to decrypt
// is empty in the snapshot and listed in LocalFailed or RemoteFailed.
type SyncDiffRecord struct {
	ID             string
	Classification Classification
	Local          *EntryFields
	Remote         *EntryFields
	LocalFailed    []string
	RemoteFailed   []string
}

// Flagged reports whether any field on either side failed to decrypt.
func (r SyncDiffRecord) Flagged() bool {
	return len(r.LocalFailed) > 0 || len(r.RemoteFailed) > 0
}

// FailedSides lists the sides with at least one unreadable field.
func (r SyncDiffRecord) FailedSides() []Side {
	var out []Side
	if len(r.LocalFailed) > 0 {
		out = append(out, SideLocal)
	}
	if len(r.RemoteFailed) > 0 {
		out = append(out, SideRemote)
	}
	return out
}
