package models

import "time"

const BackupVersion = 1

// Backup is the plaintext document sealed inside an export file.
type Backup struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	Entries   []EntryFields `json:"data"`
}

// BackupFile is the on-disk export. Data is the Backup sealed under a
// passphrase, including the argon2id parameters and salt needed to open it.
type BackupFile struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Data      string    `json:"data"`
}

// ImportMode selects which backup entries are imported.
type ImportMode string

const (
	ImportAll     ImportMode = "all"
	ImportNewOnly ImportMode = "new-only"
)

// DuplicateKey identifies an entry for import de-duplication.
func (f EntryFields) DuplicateKey() [3]string {
	return [3]string{f.ServiceName, f.Username, f.Category}
}
