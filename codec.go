package pagedb

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PageInfo is the per-URL observational record.
type PageInfo struct {
	URL         string
	FirstCrawl  float64 // seconds since epoch; 0 if never crawled
	LastCrawl   float64 // seconds since epoch
	NCrawls     uint64
	NChanges    uint64
	Score       float32
	ContentHash []byte
}

// maxKeySize is the maximum length of a URL the store will accept,
// including room for a namespace prefix on any auxiliary key derived
// from it. encodePageInfo rejects a longer URL with InvalidArgument
// rather than silently persisting it.
const maxKeySize = 500

// maxURLLen and maxContentHashLen bound the two variable-length fields,
// since the codec stores their lengths as u16.
const (
	maxURLLen         = 1<<16 - 1
	maxContentHashLen = 1<<16 - 1
)

// pageInfoHeaderSize is the size in bytes of the fixed-width portion of
// the encoded record, before the variable-length URL and content hash.
//
//	f64 first_crawl
//	f64 last_crawl
//	f32 score
//	u64 n_crawls
//	u64 n_changes
//	u16 url_len
//	u16 content_hash_len
const pageInfoHeaderSize = 8 + 8 + 4 + 8 + 8 + 2 + 2

// encodePageInfo serializes p into a contiguous, self-delimiting little
// endian buffer. load(dump(p)) must equal p field-for-field; see
// decodePageInfo.
func encodePageInfo(p *PageInfo) ([]byte, error) {
	if len(p.URL) > maxKeySize {
		return nil, Errorf(InvalidArgument, "url length %d exceeds maximum key size %d", len(p.URL), maxKeySize)
	}
	if len(p.URL) > maxURLLen {
		return nil, Errorf(Internal, "url length %d exceeds codec limit %d", len(p.URL), maxURLLen)
	}
	if len(p.ContentHash) > maxContentHashLen {
		return nil, Errorf(Internal, "content hash length %d exceeds codec limit %d", len(p.ContentHash), maxContentHashLen)
	}

	buf := make([]byte, pageInfoHeaderSize+len(p.URL)+len(p.ContentHash))
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(p.FirstCrawl))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.LastCrawl))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(p.Score))
	binary.LittleEndian.PutUint64(buf[20:28], p.NCrawls)
	binary.LittleEndian.PutUint64(buf[28:36], p.NChanges)
	binary.LittleEndian.PutUint16(buf[36:38], uint16(len(p.URL)))
	binary.LittleEndian.PutUint16(buf[38:40], uint16(len(p.ContentHash)))

	off := pageInfoHeaderSize
	off += copy(buf[off:], p.URL)
	copy(buf[off:], p.ContentHash)

	return buf, nil
}

// decodePageInfo deserializes a buffer produced by encodePageInfo,
// rejecting short reads and oversize declared lengths.
func decodePageInfo(buf []byte) (*PageInfo, error) {
	if len(buf) < pageInfoHeaderSize {
		return nil, Errorf(Internal, "page info buffer too short: %d bytes", len(buf))
	}

	firstCrawl := math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
	lastCrawl := math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16]))
	score := math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20]))
	nCrawls := binary.LittleEndian.Uint64(buf[20:28])
	nChanges := binary.LittleEndian.Uint64(buf[28:36])
	urlLen := int(binary.LittleEndian.Uint16(buf[36:38]))
	hashLen := int(binary.LittleEndian.Uint16(buf[38:40]))

	want := pageInfoHeaderSize + urlLen + hashLen
	if len(buf) != want {
		return nil, Errorf(Internal, "page info buffer length mismatch: have %d, want %d", len(buf), want)
	}

	url := string(buf[pageInfoHeaderSize : pageInfoHeaderSize+urlLen])
	var contentHash []byte
	if hashLen > 0 {
		contentHash = make([]byte, hashLen)
		copy(contentHash, buf[pageInfoHeaderSize+urlLen:])
	}

	return &PageInfo{
		URL:         url,
		FirstCrawl:  firstCrawl,
		LastCrawl:   lastCrawl,
		NCrawls:     nCrawls,
		NChanges:    nChanges,
		Score:       score,
		ContentHash: contentHash,
	}, nil
}

// DebugLine renders a fixed-width inspection line: ctime of first/last
// crawl, crawl and change counters in e-notation, and the URL truncated
// to 512 bytes. It is for debugging/inspection tools only, never on the
// ingestion path.
func (p *PageInfo) DebugLine() string {
	url := p.URL
	if len(url) > 512 {
		url = url[:512]
	}
	return fmt.Sprintf("%s %s %s %s %s",
		ctime(p.FirstCrawl),
		ctime(p.LastCrawl),
		enotation(p.NCrawls),
		enotation(p.NChanges),
		url,
	)
}

func ctime(epochSeconds float64) string {
	if epochSeconds == 0 {
		return "-                       "
	}
	sec := int64(epochSeconds)
	nsec := int64((epochSeconds - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("Mon Jan  2 15:04:05 2006")
}

func enotation(v uint64) string {
	return strings.ToLower(strconv.FormatFloat(float64(v), 'e', 2, 64))
}
