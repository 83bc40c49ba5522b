package securemem

import "golang.org/x/sys/unix"

func dontDump(data []byte) {
	_ = unix.Madvise(data, unix.MADV_DONTDUMP)
}
