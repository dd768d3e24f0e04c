// Package targets derives the set of files a vision report wants changed.
package targets

import (
	"sort"

	"github.com/xkilldash9x/vibeloop/api/schemas"
)

// Resolve collects every proposed change's file across all issues. Empty paths
// are dropped, duplicates removed and the result sorted byte-wise, so the same
// report always yields the same slice. A report without changes yields an
// empty, non-nil slice.
func Resolve(report *schemas.VisionReport) []string {
	files := []string{}
	if report == nil {
		return files
	}

	seen := make(map[string]struct{})
	for _, issue := range report.Issues {
		for _, change := range issue.ProposedChanges {
			if change.File == "" {
				continue
			}
			if _, dup := seen[change.File]; dup {
				continue
			}
			seen[change.File] = struct{}{}
			files = append(files, change.File)
		}
	}
	sort.Strings(files)
	return files
}
