package vault

import (
	"context"

	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/dmitrijs2005/keydozer/internal/reconcile"
)

// RepairResult lists the ids pushed to the remote store and the ids left
// alone because their local copy could not be decrypted.
type RepairResult struct {
	Pushed  []string
	Skipped []string
}

func (s *Service) snapshots(ctx context.Context, ownerID string) (local, remote []models.VaultEntry, err error) {
	local, err = s.local.entries.List(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	remote, err = s.remote.entries.List(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	return local, remote, nil
}

// Reconcile compares the local and remote vaults of the session owner.
func (s *Service) Reconcile(ctx context.Context) (*reconcile.Report, error) {
	if s.remote == nil {
		return nil, errNoRemote
	}
	var report *reconcile.Report
	err := s.withKey(func(ownerID string, key []byte) error {
		local, remote, err := s.snapshots(ctx, ownerID)
		if err != nil {
			return err
		}
		report, err = reconcile.Compare(ownerID, key, local, remote)
		if err != nil {
			return err
		}
		s.log.Info(ctx, "reconciled", "owner", ownerID,
			"local", report.LocalTotal, "remote", report.RemoteTotal,
			"synced", report.Count(models.Synced), "divergent", report.Count(models.Divergent),
			"local_only", report.Count(models.LocalOnly), "remote_only", report.Count(models.RemoteOnly))
		for _, rec := range report.Flagged() {
			s.log.Warn(ctx, "entry flagged", "owner", ownerID, "entry", rec.ID, "sides", rec.FailedSides())
		}
		return nil
	})
	return report, err
}

// PushRepairs overwrites the remote copy of every LocalOnly and Divergent
// entry with the local one, by the same id. RemoteOnly and Synced entries
// are left alone. The comparison is recomputed so the push always acts on
// current data.
func (s *Service) PushRepairs(ctx context.Context) (*RepairResult, error) {
	if s.remote == nil {
		return nil, errNoRemote
	}
	res := &RepairResult{}
	err := s.withKey(func(ownerID string, key []byte) error {
		local, remote, err := s.snapshots(ctx, ownerID)
		if err != nil {
			return err
		}
		report, err := reconcile.Compare(ownerID, key, local, remote)
		if err != nil {
			return err
		}
		push, skipped := reconcile.Repairs(report, local)
		res.Skipped = skipped
		for _, e := range push {
			if err := s.remote.entries.Put(ctx, &e); err != nil {
				return err
			}
			res.Pushed = append(res.Pushed, e.ID)
		}
		s.log.Info(ctx, "repairs pushed", "owner", ownerID, "pushed", len(res.Pushed), "skipped", len(res.Skipped))
		return nil
	})
	return res, err
}
