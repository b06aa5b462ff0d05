package scheduler

// FindConflicts returns every block that participates in at least one
// overlapping pair. The comparison is pairwise over all distinct unordered
// pairs; blocks appearing in multiple overlapping pairs are emitted once,
// preserving input order. Quadratic cost is acceptable for the expected
// schedule sizes (tens of blocks).
func FindConflicts(blocks []TimeBlock) []TimeBlock {
	if len(blocks) < 2 {
		return nil
	}

	involved := make([]bool, len(blocks))
	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			if blocks[i].Overlaps(blocks[j]) {
				involved[i] = true
				involved[j] = true
			}
		}
	}

	var conflicts []TimeBlock
	for i, block := range blocks {
		if involved[i] {
			conflicts = append(conflicts, block)
		}
	}
	return conflicts
}
