package reconcile

import (
	"testing"

	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	k, err := cryptox.GenerateMasterKey()
	require.NoError(t, err)
	return k
}

func seal(t *testing.T, id string, f models.EntryFields, key []byte) models.VaultEntry {
	t.Helper()
	enc, err := f.Map(func(_, v string) (string, error) { return cryptox.EncryptField(v, key) })
	require.NoError(t, err)
	return models.VaultEntry{ID: id, OwnerID: "alice", Version: models.EntrySchemaVersion, Fields: enc}
}

func classes(r *Report) map[string]models.Classification {
	out := map[string]models.Classification{}
	for _, rec := range r.Records {
		out[rec.ID] = rec.Classification
	}
	return out
}

func TestCompare_Classifies(t *testing.T) {
	key := newKey(t)
	mail := models.EntryFields{ServiceName: "mail", Username: "a", Password: "Xy9!zQ"}
	bank := models.EntryFields{ServiceName: "bank", Username: "a", Password: "old"}
	bankNew := bank
	bankNew.Password = "new"

	local := []models.VaultEntry{
		seal(t, "1", mail, key),
		seal(t, "2", bank, key),
		seal(t, "3", models.EntryFields{ServiceName: "only-here"}, key),
	}
	remote := []models.VaultEntry{
		seal(t, "9", models.EntryFields{ServiceName: "only-there"}, key),
		seal(t, "1", mail, key),
		seal(t, "2", bankNew, key),
	}

	r, err := Compare("alice", key, local, remote)
	require.NoError(t, err)

	want := map[string]models.Classification{
		"1": models.Synced,
		"2": models.Divergent,
		"3": models.LocalOnly,
		"9": models.RemoteOnly,
	}
	assert.Empty(t, cmp.Diff(want, classes(r)))
	assert.Equal(t, []string{"1", "2", "3", "9"}, []string{r.Records[0].ID, r.Records[1].ID, r.Records[2].ID, r.Records[3].ID})
	assert.Equal(t, 3, r.LocalTotal)
	assert.Equal(t, 3, r.RemoteTotal)
	assert.Equal(t, 1, r.Count(models.Synced))
	assert.Empty(t, r.Flagged())

	assert.Equal(t, "Xy9!zQ", r.Records[0].Local.Password)
	assert.Equal(t, "new", r.Records[1].Remote.Password)
	assert.Nil(t, r.Records[2].Remote)
	assert.Nil(t, r.Records[3].Local)
}

func TestCompare_EqualPlaintextDifferentCiphertextIsSynced(t *testing.T) {
	key := newKey(t)
	f := models.EntryFields{ServiceName: "mail", Notes: ""}
	l := seal(t, "1", f, key)
	r := seal(t, "1", f, key)
	require.NotEqual(t, l.Fields.ServiceName, r.Fields.ServiceName)

	rep, err := Compare("alice", key, []models.VaultEntry{l}, []models.VaultEntry{r})
	require.NoError(t, err)
	assert.Equal(t, models.Synced, rep.Records[0].Classification)
}

func TestCompare_LegacyPlaintextComparesWithCiphertext(t *testing.T) {
	key := newKey(t)
	f := models.EntryFields{ServiceName: "mail", Password: "p"}
	legacy := models.VaultEntry{ID: "1", Version: 1, Fields: f}

	rep, err := Compare("alice", key, []models.VaultEntry{legacy}, []models.VaultEntry{seal(t, "1", f, key)})
	require.NoError(t, err)
	assert.Equal(t, models.Synced, rep.Records[0].Classification)
}

func TestCompare_DecryptFailureFlagsAndContinues(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	f := models.EntryFields{ServiceName: "mail", Password: "p"}

	bad := seal(t, "1", f, key)
	bad.Fields.Password = seal(t, "x", models.EntryFields{Password: "p"}, other).Fields.Password

	local := []models.VaultEntry{bad, seal(t, "2", f, key)}
	remote := []models.VaultEntry{seal(t, "1", f, key), seal(t, "2", f, key)}

	rep, err := Compare("alice", key, local, remote)
	require.NoError(t, err)
	require.Len(t, rep.Records, 2)

	first := rep.Records[0]
	assert.Equal(t, models.Divergent, first.Classification)
	assert.True(t, first.Flagged())
	assert.Equal(t, []string{"password"}, first.LocalFailed)
	assert.Equal(t, []models.Side{models.SideLocal}, first.FailedSides())
	assert.Equal(t, "", first.Local.Password)
	assert.Equal(t, "mail", first.Local.ServiceName)

	assert.Equal(t, models.Synced, rep.Records[1].Classification)
	assert.Len(t, rep.Flagged(), 1)
}

func TestCompare_BothSidesFailedStillDivergent(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	f := models.EntryFields{Password: "p"}

	rep, err := Compare("alice", key,
		[]models.VaultEntry{seal(t, "1", f, other)},
		[]models.VaultEntry{seal(t, "1", f, other)})
	require.NoError(t, err)
	rec := rep.Records[0]
	assert.Equal(t, models.Divergent, rec.Classification)
	assert.Equal(t, []models.Side{models.SideLocal, models.SideRemote}, rec.FailedSides())
}

func TestCompare_Empty(t *testing.T) {
	rep, err := Compare("alice", newKey(t), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Records)
	assert.Zero(t, rep.LocalTotal)
}

func TestRepairs(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	a := models.EntryFields{ServiceName: "a"}
	b := models.EntryFields{ServiceName: "b"}

	local := []models.VaultEntry{
		seal(t, "synced", a, key),
		seal(t, "divergent", a, key),
		seal(t, "local-only", a, key),
		seal(t, "unreadable", a, other),
	}
	remote := []models.VaultEntry{
		seal(t, "synced", a, key),
		seal(t, "divergent", b, key),
		seal(t, "remote-only", b, key),
		seal(t, "unreadable", a, key),
	}

	rep, err := Compare("alice", key, local, remote)
	require.NoError(t, err)

	push, skipped := Repairs(rep, local)
	var ids []string
	for _, e := range push {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"divergent", "local-only"}, ids)
	assert.Equal(t, []string{"unreadable"}, skipped)
	assert.Equal(t, local[1].Fields, push[0].Fields)
}
