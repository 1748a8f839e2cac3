package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fetchgraph/pagedb"
)

// Source produces CrawledPage records to feed into a PageDB. Next returns
// io.EOF once the source is exhausted.
type Source interface {
	Next() (pagedb.CrawledPage, error)
}

// jsonLink mirrors pagedb.Link with JSON field names, decoupling the wire
// format from the store's in-memory struct layout.
type jsonLink struct {
	URL   string  `json:"url"`
	Score float64 `json:"score,omitempty"`
}

// jsonPage mirrors pagedb.CrawledPage for JSON Lines decoding.
type jsonPage struct {
	URL   string     `json:"url"`
	Time  float64    `json:"time"`
	Score float32    `json:"score,omitempty"`
	Hash  string     `json:"hash,omitempty"`
	Links []jsonLink `json:"links,omitempty"`
}

// JSONLSource reads one CrawledPage per line of newline-delimited JSON.
// It stands in for a live HTTP fetcher: each line is the record a fetcher
// would have already produced (URL, crawl time, content hash, outbound
// links), letting the ingestion pipeline be exercised without a live
// crawl.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewJSONLSource wraps r as a Source of JSON Lines records.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &JSONLSource{scanner: scanner}
}

// Next implements Source.
func (s *JSONLSource) Next() (pagedb.CrawledPage, error) {
	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var jp jsonPage
		if err := json.Unmarshal(raw, &jp); err != nil {
			return pagedb.CrawledPage{}, fmt.Errorf("ingest: line %d: %w", s.line, err)
		}

		page := pagedb.CrawledPage{
			URL:   jp.URL,
			Time:  jp.Time,
			Score: jp.Score,
			Hash:  []byte(jp.Hash),
		}
		for _, l := range jp.Links {
			page.Links = append(page.Links, pagedb.Link{URL: l.URL, Score: l.Score})
		}
		return page, nil
	}

	if err := s.scanner.Err(); err != nil {
		return pagedb.CrawledPage{}, fmt.Errorf("ingest: scan: %w", err)
	}
	return pagedb.CrawledPage{}, io.EOF
}
