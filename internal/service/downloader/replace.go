package downloader

import (
	"fmt"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/dmd-downloader/internal/store"
)

// checkWritable verifies that a file can be created next to the host path target.
// It runs before a download starts so an unwritable store fails without
// transferring the body.
func checkWritable(target string) error {
	options := goupdate.Options{
		TargetPath: target,
		TargetMode: store.DefaultFilePermissions,
	}

	if err := options.CheckPermissions(); err != nil {
		return fmt.Errorf("check permissions: %w", err)
	}

	return nil
}
