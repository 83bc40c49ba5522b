//go:build unix && !linux

package securemem

func dontDump([]byte) {}
