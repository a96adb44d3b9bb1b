package storage

import (
	"fmt"
)

// ResourcePaths lists the resource URIs available for a saved proposal.
func ResourcePaths(id string, screenCount int) []string {
	paths := []string{
		fmt.Sprintf("proposal://%s", id),
		fmt.Sprintf("proposal://%s/screens", id),
	}

	if screenCount > 0 {
		paths = append(paths,
			fmt.Sprintf("proposal://%s/screens/0", id),
			fmt.Sprintf("proposal://%s/screens/{index}", id),
		)
	}

	return append(paths, fmt.Sprintf("proposal://%s/audit", id))
}
