//go:build unix

package walker

import (
	"os"
	"syscall"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

func identityOf(path string, info os.FileInfo) types.Identity {
	id := types.Identity{Path: path}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		id.Device = uint64(st.Dev) //nolint:unconvert // int32 on darwin
		id.Inode = st.Ino
	}
	return id
}
