//go:build !unix

package walker

import (
	"os"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

func identityOf(path string, _ os.FileInfo) types.Identity {
	return types.Identity{Path: path}
}
