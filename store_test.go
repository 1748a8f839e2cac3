package pagedb

import (
	"bytes"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *PageDB {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "store")
	db, err := Open(dir, Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func drainEdges(t *testing.T, db *PageDB) []Edge {
	t.Helper()
	s, err := OpenLinkStream(db)
	if err != nil {
		t.Fatalf("OpenLinkStream: %v", err)
	}
	defer s.Close()

	var edges []Edge
	for {
		e, state := s.Next()
		switch state {
		case StateNext:
			edges = append(edges, e)
		case StateEnd:
			return edges
		case StateError:
			t.Fatalf("link stream error: %v", s.Err())
		}
	}
}

// Adding a page with two never-before-seen links allocates three dense
// indices and records an edge to each link.
func TestAddAllocatesIndicesForNewLinks(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Add(CrawledPage{
		URL:   "http://a/",
		Time:  1000.0,
		Score: 0.5,
		Hash:  []byte{0xAA},
		Links: []Link{{URL: "http://b/", Score: 0.1}, {URL: "http://c/", Score: 0.2}},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, err := db.NPages()
	if err != nil || n != 3 {
		t.Fatalf("NPages = %d, %v; want 3", n, err)
	}

	idxA, _, _ := db.GetIdx("http://a/")
	idxB, _, _ := db.GetIdx("http://b/")
	idxC, _, _ := db.GetIdx("http://c/")
	if idxA != 0 || idxB != 1 || idxC != 2 {
		t.Fatalf("indices = a:%d b:%d c:%d; want 0,1,2", idxA, idxB, idxC)
	}

	edges := drainEdges(t, db)
	want := []Edge{{0, 1}, {0, 2}}
	if !edgesEqual(edges, want) {
		t.Fatalf("edges = %v; want %v", edges, want)
	}

	infoA, _ := db.GetInfoFromURL("http://a/")
	if infoA.NCrawls != 1 {
		t.Fatalf("a.n_crawls = %d; want 1", infoA.NCrawls)
	}
	infoB, _ := db.GetInfoFromURL("http://b/")
	if infoB.NCrawls != 0 {
		t.Fatalf("b.n_crawls = %d; want 0", infoB.NCrawls)
	}
}

// Crawling a page that was previously only seen as a link target fills
// in its observational statistics without touching its dense index.
func TestAddPromotesLinkTargetToCrawledPage(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Add(CrawledPage{
		URL: "http://a/", Time: 1000.0, Score: 0.5, Hash: []byte{0xAA},
		Links: []Link{{URL: "http://b/"}, {URL: "http://c/"}},
	})
	if err != nil {
		t.Fatalf("Add a: %v", err)
	}

	_, err = db.Add(CrawledPage{
		URL: "http://b/", Time: 1100.0, Score: 0.7, Hash: []byte{0xBB},
		Links: []Link{{URL: "http://a/"}},
	})
	if err != nil {
		t.Fatalf("Add b: %v", err)
	}

	n, _ := db.NPages()
	if n != 3 {
		t.Fatalf("NPages = %d; want 3", n)
	}

	edges := drainEdges(t, db)
	want := []Edge{{0, 1}, {0, 2}, {1, 0}}
	if !edgesEqual(edges, want) {
		t.Fatalf("edges = %v; want %v", edges, want)
	}

	infoB, _ := db.GetInfoFromURL("http://b/")
	if infoB.FirstCrawl != 1100.0 || infoB.NCrawls != 1 {
		t.Fatalf("b = %+v; want first_crawl=1100 n_crawls=1", infoB)
	}
}

// Re-adding an identical page bumps the crawl counter but never the
// change counter, and leaves the dense index count unchanged.
func TestReAddSamePageIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	page := CrawledPage{
		URL: "http://a/", Time: 1000.0, Score: 0.5, Hash: []byte{0xAA},
		Links: []Link{{URL: "http://b/"}, {URL: "http://c/"}},
	}

	if _, err := db.Add(page); err != nil {
		t.Fatalf("Add 1: %v", err)
	}
	if _, err := db.Add(page); err != nil {
		t.Fatalf("Add 2: %v", err)
	}

	n, _ := db.NPages()
	if n != 3 {
		t.Fatalf("NPages = %d; want 3", n)
	}

	info, _ := db.GetInfoFromURL("http://a/")
	if info.NCrawls != 2 || info.NChanges != 0 || info.LastCrawl != 1000.0 {
		t.Fatalf("a = %+v; want n_crawls=2 n_changes=0 last_crawl=1000", info)
	}
}

// A content hash that differs from the previous crawl increments the
// change counter and replaces the stored hash.
func TestChangeDetectionIncrementsNChanges(t *testing.T) {
	db := openTestDB(t)
	page := CrawledPage{URL: "http://a/", Time: 1000.0, Score: 0.5, Hash: []byte{0xAA}}
	if _, err := db.Add(page); err != nil {
		t.Fatalf("Add 1: %v", err)
	}

	page.Hash = []byte{0xCC}
	page.Time = 1001.0
	if _, err := db.Add(page); err != nil {
		t.Fatalf("Add 2: %v", err)
	}

	info, _ := db.GetInfoFromURL("http://a/")
	if info.NChanges != 1 {
		t.Fatalf("n_changes = %d; want 1", info.NChanges)
	}
	if !bytes.Equal(info.ContentHash, []byte{0xCC}) {
		t.Fatalf("content_hash = %x; want cc", info.ContentHash)
	}
}

// Edge-list replacement
func TestEdgeListReplacement(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Add(CrawledPage{URL: "http://a/", Links: []Link{{URL: "http://x/"}, {URL: "http://y/"}}}); err != nil {
		t.Fatalf("Add 1: %v", err)
	}
	if _, err := db.Add(CrawledPage{URL: "http://a/", Links: []Link{{URL: "http://z/"}}}); err != nil {
		t.Fatalf("Add 2: %v", err)
	}

	idxA, _, _ := db.GetIdx("http://a/")
	idxZ, _, _ := db.GetIdx("http://z/")

	edges := drainEdges(t, db)
	for _, e := range edges {
		if e.From == idxA && e.To != idxZ {
			t.Fatalf("stale edge from first add survived: %v", e)
		}
	}
}

// Self-links and within-page duplicate links
func TestSelfLinkAndDuplicateLinks(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Add(CrawledPage{
		URL: "http://a/",
		Links: []Link{
			{URL: "http://a/"},
			{URL: "http://b/"},
			{URL: "http://b/"},
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, _ := db.NPages()
	if n != 2 {
		t.Fatalf("NPages = %d; want 2 (a, b)", n)
	}

	edges := drainEdges(t, db)
	if len(edges) != 3 {
		t.Fatalf("len(edges) = %d; want 3 (self-link + 2x duplicate)", len(edges))
	}
}

// Restartability
func TestLinkStreamRestartable(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Add(CrawledPage{URL: "http://a/", Links: []Link{{URL: "http://b/"}, {URL: "http://c/"}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s, err := OpenLinkStream(db)
	if err != nil {
		t.Fatalf("OpenLinkStream: %v", err)
	}
	defer s.Close()

	var first []Edge
	for {
		e, state := s.Next()
		if state != StateNext {
			break
		}
		first = append(first, e)
	}

	s.Reset()
	var second []Edge
	for {
		e, state := s.Next()
		if state != StateNext {
			break
		}
		second = append(second, e)
	}

	if !edgesEqual(first, second) {
		t.Fatalf("reset produced different output: %v vs %v", first, second)
	}
}

// Index bijection and monotonicity across many adds
func TestIndexBijectionAndMonotonic(t *testing.T) {
	db := openTestDB(t)

	seen := map[uint64]string{}
	for i := 0; i < 50; i++ {
		url := "http://host/" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		if _, err := db.Add(CrawledPage{URL: url}); err != nil {
			t.Fatalf("Add %s: %v", url, err)
		}
		idx, ok, err := db.GetIdx(url)
		if err != nil || !ok {
			t.Fatalf("GetIdx(%s): %v, %v", url, ok, err)
		}
		if other, exists := seen[idx]; exists && other != url {
			t.Fatalf("index %d reused by both %q and %q", idx, other, url)
		}
		seen[idx] = url
	}

	n, _ := db.NPages()
	if int(n) != len(seen) {
		t.Fatalf("NPages = %d; want %d", n, len(seen))
	}
}

func TestReopenPersistsState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	db, err := Open(dir, Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.Add(CrawledPage{URL: "http://a/", Links: []Link{{URL: "http://b/"}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	wantIdx, _, _ := db.GetIdx("http://a/")
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, Config{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	gotIdx, ok, err := reopened.GetIdx("http://a/")
	if err != nil || !ok || gotIdx != wantIdx {
		t.Fatalf("GetIdx after reopen = %d, %v, %v; want %d, true, nil", gotIdx, ok, err, wantIdx)
	}

	edges := drainEdges(t, reopened)
	if len(edges) != 1 {
		t.Fatalf("len(edges) after reopen = %d; want 1", len(edges))
	}
}

func TestAddRejectsOversizeURL(t *testing.T) {
	db := openTestDB(t)
	oversize := "http://host/" + string(make([]byte, maxKeySize))

	if _, err := db.Add(CrawledPage{URL: oversize}); err == nil {
		t.Fatal("expected error adding an oversize source URL")
	} else if e, ok := err.(*Error); !ok || e.Code != InvalidArgument {
		t.Fatalf("got %v (%T); want an InvalidArgument *Error", err, err)
	}

	if _, err := db.Add(CrawledPage{URL: "http://a/", Links: []Link{{URL: oversize}}}); err == nil {
		t.Fatal("expected error adding a page with an oversize link target")
	} else if e, ok := err.(*Error); !ok || e.Code != InvalidArgument {
		t.Fatalf("got %v (%T); want an InvalidArgument *Error", err, err)
	}

	n, err := db.NPages()
	if err != nil || n != 0 {
		t.Fatalf("NPages = %d, %v; want 0 (rejected Add must not persist anything)", n, err)
	}
}

func TestGetInfoFromURLDetectsHashCollision(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	constantHash := func(url []byte) uint64 { return 42 }

	db, err := Open(dir, Config{Hasher: constantHash})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Add(CrawledPage{URL: "http://a/"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := db.Add(CrawledPage{URL: "http://b/"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := db.GetInfoFromURL("http://b/"); err == nil {
		t.Fatalf("expected a collision error, got nil")
	} else if e, ok := err.(*Error); !ok || e.Code != Internal {
		t.Fatalf("expected an Internal *Error, got %v (%T)", err, err)
	}
}

func edgesEqual(a, b []Edge) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
