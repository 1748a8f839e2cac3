package ingest

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fetchgraph/pagedb"
)

func TestJSONLSourceDecodesPages(t *testing.T) {
	input := strings.NewReader(`
{"url":"http://a.example/","time":100,"hash":"h1","links":[{"url":"http://b.example/"}]}
{"url":"http://b.example/","time":101}
`)
	src := NewJSONLSource(input)

	p1, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p1.URL != "http://a.example/" || len(p1.Links) != 1 || p1.Links[0].URL != "http://b.example/" {
		t.Fatalf("unexpected page: %+v", p1)
	}

	p2, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p2.URL != "http://b.example/" {
		t.Fatalf("unexpected page: %+v", p2)
	}

	if _, err := src.Next(); err == nil {
		t.Fatalf("expected EOF")
	}
}

func TestJSONLSourceRejectsMalformedLine(t *testing.T) {
	src := NewJSONLSource(strings.NewReader("not json\n"))
	if _, err := src.Next(); err == nil {
		t.Fatalf("expected decode error")
	}
}

type sliceSource struct {
	pages []pagedb.CrawledPage
	pos   int
}

func (s *sliceSource) Next() (pagedb.CrawledPage, error) {
	if s.pos >= len(s.pages) {
		return pagedb.CrawledPage{}, io.EOF
	}
	p := s.pages[s.pos]
	s.pos++
	return p, nil
}

func TestDriverIngestsAllPages(t *testing.T) {
	dir := t.TempDir()
	db, err := pagedb.Open(dir, pagedb.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	source := &sliceSource{pages: []pagedb.CrawledPage{
		{URL: "http://a.example/", Links: []pagedb.Link{{URL: "http://b.example/"}}},
		{URL: "http://c.example/"},
	}}

	driver := NewDriver(db, source)
	driver.Concurrency = 2

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := driver.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.PagesIngested != 2 {
		t.Fatalf("PagesIngested = %d; want 2", stats.PagesIngested)
	}

	n, err := db.NPages()
	if err != nil {
		t.Fatalf("NPages: %v", err)
	}
	if n != 3 {
		t.Fatalf("NPages() = %d; want 3 (a, b, c)", n)
	}
}

func TestDriverRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	db, err := pagedb.Open(dir, pagedb.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	source := &sliceSource{pages: []pagedb.CrawledPage{
		{URL: "http://a.example/"},
		{URL: "http://b.example/"},
		{URL: "http://c.example/"},
	}}

	driver := NewDriver(db, source)
	driver.Concurrency = 1
	driver.Limit = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := driver.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.PagesIngested != 1 {
		t.Fatalf("PagesIngested = %d; want 1", stats.PagesIngested)
	}
}

func TestPacerWaitReturnsImmediatelyWhenUnconfigured(t *testing.T) {
	p := NewPacer(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Wait(ctx, "http://example/"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestPacerPacesPerHost(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := p.Wait(ctx, "http://a.example/page1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := p.Wait(ctx, "http://a.example/page2"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("second wait on same host returned too fast: %v", elapsed)
	}
}
