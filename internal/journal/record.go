package journal

import (
	"bytes"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/codec"
	"github.com/zeebo/blake3"
)

// seal encodes an intent and returns it with its blake3 checksum.
func seal(in Intent) (record, sum []byte, err error) {
	record, err = codec.Marshal(in)
	if err != nil {
		return nil, nil, fmt.Errorf("encode intent: %w", err)
	}
	h := blake3.Sum256(record)
	return record, h[:], nil
}

// open verifies and decodes a stored intent.
func open(record, sum []byte) (Intent, error) {
	h := blake3.Sum256(record)
	if !bytes.Equal(h[:], sum) {
		return Intent{}, ErrCorrupt
	}
	var in Intent
	if err := codec.Unmarshal(record, &in); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	return in, nil
}
