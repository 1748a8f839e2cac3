package pagedb

import (
	"fmt"
	"testing"
)

// TestManyPagesEdgeCount is a scaled-down version of the thousands-of-pages
// link-stream-completeness check: every added page contributes exactly
// its own link count to the stream, and every added page's index appears
// among the observed From indices.
func TestManyPagesEdgeCount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping scale test in -short mode")
	}

	const nPages = 500
	const linksPerPage = 10

	db := openTestDB(t)

	for i := 0; i < nPages; i++ {
		src := fmt.Sprintf("http://host/page-%d", i)
		links := make([]Link, linksPerPage)
		for j := 0; j < linksPerPage; j++ {
			links[j] = Link{URL: fmt.Sprintf("http://host/target-%d-%d", i, j)}
		}
		if _, err := db.Add(CrawledPage{URL: src, Links: links}); err != nil {
			t.Fatalf("Add %s: %v", src, err)
		}
	}

	edges := drainEdges(t, db)
	if len(edges) != nPages*linksPerPage {
		t.Fatalf("len(edges) = %d; want %d", len(edges), nPages*linksPerPage)
	}

	froms := map[uint64]bool{}
	for _, e := range edges {
		froms[e.From] = true
	}
	for i := 0; i < nPages; i++ {
		idx, ok, err := db.GetIdx(fmt.Sprintf("http://host/page-%d", i))
		if err != nil || !ok {
			t.Fatalf("GetIdx for page-%d: %v, %v", i, ok, err)
		}
		if !froms[idx] {
			t.Fatalf("index %d (page-%d) missing from observed From set", idx, i)
		}
	}
}
