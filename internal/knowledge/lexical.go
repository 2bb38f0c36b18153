package knowledge

import (
	"regexp"
	"sort"
	"strings"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// tokenPattern matches CJK spans and ASCII word tokens of length >= 2, the
// same unit the deterministic fallback scores matches by.
var tokenPattern = regexp.MustCompile(`\p{Han}+|[A-Za-z0-9_]{2,}`)

func tokenize(s string) []string {
	return tokenPattern.FindAllString(s, -1)
}

// score sums, for every query token that occurs at least once in
// title+content, the token's rune length — so longer, more specific
// matches outweigh many short ones. A token's contribution is counted
// once regardless of how many times it recurs in the haystack; a token
// that appears more than once in the query is counted once per appearance.
func score(queryTokens []string, title, content string) int {
	haystack := strings.ToLower(title + " " + content)
	total := 0
	for _, tok := range queryTokens {
		needle := strings.ToLower(tok)
		if needle == "" {
			continue
		}
		if !strings.Contains(haystack, needle) {
			continue
		}
		total += len([]rune(tok))
	}
	return total
}

// rankLexical orders candidates by descending score, breaking ties by
// (source_id, chunk_index, id), and returns the top topK.
func rankLexical(candidates []candidateRow, query string, topK int) []domain.RetrievedItem {
	tokens := tokenize(query)

	type scored struct {
		row candidateRow
		s   int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{row: c, s: score(tokens, c.item.Title, c.item.Content)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].s != ranked[j].s {
			return ranked[i].s > ranked[j].s
		}
		if ranked[i].row.item.SourceID != ranked[j].row.item.SourceID {
			return ranked[i].row.item.SourceID < ranked[j].row.item.SourceID
		}
		if ranked[i].row.chunkIndex != ranked[j].row.chunkIndex {
			return ranked[i].row.chunkIndex < ranked[j].row.chunkIndex
		}
		return ranked[i].row.item.ChunkID < ranked[j].row.item.ChunkID
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]domain.RetrievedItem, 0, len(ranked))
	for _, r := range ranked {
		item := r.row.item
		f := float64(r.s)
		item.Score = &f
		out = append(out, item)
	}
	return out
}
