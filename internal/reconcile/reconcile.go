// Package reconcile compares a local and a remote snapshot of one owner's
// vault. It performs no I/O: callers fetch both snapshots, run Compare, and
// write whatever Repairs returns.
package reconcile

import (
	"errors"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/models"
)

// Report is the outcome of one reconciliation run.
type Report struct {
	OwnerID     string
	Records     []models.SyncDiffRecord
	LocalTotal  int
	RemoteTotal int
}

// Count returns how many records carry classification c.
func (r *Report) Count(c models.Classification) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Classification == c {
			n++
		}
	}
	return n
}

// Flagged returns the records with unreadable fields.
func (r *Report) Flagged() []models.SyncDiffRecord {
	var out []models.SyncDiffRecord
	for _, rec := range r.Records {
		if rec.Flagged() {
			out = append(out, rec)
		}
	}
	return out
}

// decrypt opens every field of e. Fields that fail authentication are left
// empty and named in failed; any other error is returned.
func decrypt(e models.VaultEntry, key []byte) (fields models.EntryFields, failed []string, err error) {
	fields, err = e.Fields.Map(func(name, value string) (string, error) {
		pt, err := cryptox.DecryptField(value, key)
		if errors.Is(err, common.ErrDecryptionFailure) {
			failed = append(failed, name)
			return "", nil
		}
		return pt, err
	})
	return fields, failed, err
}

// equal compares plaintext field by field. A failed field equals nothing,
// not even another failed field.
func equal(a, b models.EntryFields, aFailed, bFailed []string) bool {
	if len(aFailed) > 0 || len(bFailed) > 0 {
		return false
	}
	for _, name := range models.FieldNames {
		if *a.Field(name) != *b.Field(name) {
			return false
		}
	}
	return true
}

// Compare classifies every entry id present in local or remote. Local ids
// come first in snapshot order, then remote-only ids in snapshot order. An
// unreadable field never stops the scan; the record is flagged instead.
func Compare(ownerID string, key []byte, local, remote []models.VaultEntry) (*Report, error) {
	report := &Report{OwnerID: ownerID, LocalTotal: len(local), RemoteTotal: len(remote)}

	remoteByID := make(map[string]models.VaultEntry, len(remote))
	for _, e := range remote {
		remoteByID[e.ID] = e
	}
	matched := make(map[string]bool, len(local))

	for _, le := range local {
		lf, lfailed, err := decrypt(le, key)
		if err != nil {
			return nil, err
		}
		rec := models.SyncDiffRecord{ID: le.ID, Local: &lf, LocalFailed: lfailed}

		re, ok := remoteByID[le.ID]
		if !ok {
			rec.Classification = models.LocalOnly
			report.Records = append(report.Records, rec)
			continue
		}
		matched[le.ID] = true

		rf, rfailed, err := decrypt(re, key)
		if err != nil {
			return nil, err
		}
		rec.Remote = &rf
		rec.RemoteFailed = rfailed
		if equal(lf, rf, lfailed, rfailed) {
			rec.Classification = models.Synced
		} else {
			rec.Classification = models.Divergent
		}
		report.Records = append(report.Records, rec)
	}

	for _, re := range remote {
		if matched[re.ID] {
			continue
		}
		matched[re.ID] = true
		rf, rfailed, err := decrypt(re, key)
		if err != nil {
			return nil, err
		}
		report.Records = append(report.Records, models.SyncDiffRecord{
			ID:             re.ID,
			Classification: models.RemoteOnly,
			Remote:         &rf,
			RemoteFailed:   rfailed,
		})
	}
	return report, nil
}

// Repairs selects the local entries to push for every LocalOnly and
// Divergent record. Records whose local side failed to decrypt are returned
// as skipped ids; unreadable local data is never propagated.
func Repairs(report *Report, local []models.VaultEntry) (push []models.VaultEntry, skipped []string) {
	byID := make(map[string]models.VaultEntry, len(local))
	for _, e := range local {
		byID[e.ID] = e
	}
	for _, rec := range report.Records {
		if rec.Classification != models.LocalOnly && rec.Classification != models.Divergent {
			continue
		}
		if len(rec.LocalFailed) > 0 {
			skipped = append(skipped, rec.ID)
			continue
		}
		if e, ok := byID[rec.ID]; ok {
			push = append(push, e)
		}
	}
	return push, skipped
}
