package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var errMalformed = errors.New("malformed argon2id record")

// phc is a decoded "<prefix>$argon2id$v=19$m=..,t=..,p=..$<salt>$<payload>" string.
type phc struct {
	params  KDFParams
	salt    []byte
	payload []byte
}

var b64 = base64.RawStdEncoding

func formatPHC(prefix string, p KDFParams, salt, payload []byte) string {
	return fmt.Sprintf("%s$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		prefix, argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(payload))
}

func parsePHC(s, prefix string) (phc, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != prefix || parts[1] != "argon2id" {
		return phc{}, errMalformed
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return phc{}, errMalformed
	}
	if version != argon2.Version {
		return phc{}, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var p KDFParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return phc{}, errMalformed
	}
	if err := p.Validate(); err != nil {
		return phc{}, err
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return phc{}, errMalformed
	}
	payload, err := b64.DecodeString(parts[5])
	if err != nil || len(payload) == 0 {
		return phc{}, errMalformed
	}

	return phc{params: p, salt: salt, payload: payload}, nil
}
