package coordinator

import "github.com/sib-swiss/dclust/internal/transport"

// BlockPair is one cell of the upper-triangular block grid: two row
// ranges into the shared point array, plus the grid indices used for the
// anti-conflict dispatch rule.
type BlockPair struct {
	II, JJ     transport.Range
	IBlock     int
	JBlock     int
}

// ChooseBlockSize picks an adaptive block size B, floored at 256 (spec.md
// §4.4), growing it as far as it can while the resulting pair count still
// gives every worker at least 100 pairs to pick from. A bigger B means
// fewer, larger blocks and less per-block dispatch overhead, so the
// search starts at the floor and only grows while the ratio holds.
// override, if > 0, takes precedence (the caller explicitly requested a
// block size).
func ChooseBlockSize(n, workerCount, override int) int {
	if override > 0 {
		return override
	}
	if workerCount < 1 {
		workerCount = 1
	}
	b := 256
	for {
		next := b * 2
		if next > n {
			return b
		}
		blocks := (n + next - 1) / next
		pairs := blocks * (blocks + 1) / 2
		if pairs/workerCount < 100 {
			return b
		}
		b = next
	}
}

// GenerateBlockPairs builds the upper-triangular grid of ceil(n/B)^2
// cells (spec.md §4.4): every (i,j) with i <= j over block row indices.
func GenerateBlockPairs(n, blockSize int) []BlockPair {
	if n <= 0 || blockSize <= 0 {
		return nil
	}
	numBlocks := (n + blockSize - 1) / blockSize
	pairs := make([]BlockPair, 0, numBlocks*(numBlocks+1)/2)

	rangeOf := func(block int) transport.Range {
		start := block * blockSize
		end := start + blockSize
		if end > n {
			end = n
		}
		return transport.Range{Start: start, End: end}
	}

	for i := 0; i < numBlocks; i++ {
		for j := i; j < numBlocks; j++ {
			pairs = append(pairs, BlockPair{
				II: rangeOf(i), JJ: rangeOf(j),
				IBlock: i, JBlock: j,
			})
		}
	}
	return pairs
}
