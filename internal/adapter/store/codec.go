package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"ranker/internal/domain"
)

// Postings value layout:
//
//	uvarint(df) | flag | body
//
// body is a sequence of (uvarint docDelta, uvarint freq, freq x uvarint posDelta).
// flag selects whether body is stored raw or zstd compressed.
const (
	flagRaw  byte = 0
	flagZstd byte = 1

	// Bodies below this size are stored raw; a zstd frame would not pay for itself.
	minCompressSize = 64
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// encodePostings serializes a postings list. The list must already satisfy
// the ordering invariants; decodePostings enforces them on the way back.
func encodePostings(list domain.PostingsList) []byte {
	body := make([]byte, 0, len(list)*4)
	var prevDoc uint32
	for i, p := range list {
		delta := p.DocID
		if i > 0 {
			delta = p.DocID - prevDoc
		}
		prevDoc = p.DocID
		body = binary.AppendUvarint(body, uint64(delta))
		body = binary.AppendUvarint(body, uint64(len(p.Positions)))
		prevPos := 0
		for j, pos := range p.Positions {
			d := pos
			if j > 0 {
				d = pos - prevPos
			}
			prevPos = pos
			body = binary.AppendUvarint(body, uint64(d))
		}
	}

	out := binary.AppendUvarint(make([]byte, 0, len(body)+binary.MaxVarintLen64+1), uint64(len(list)))
	if len(body) >= minCompressSize {
		enc := getZstdEncoder()
		compressed := enc.EncodeAll(body, nil)
		putZstdEncoder(enc)
		if len(compressed) < len(body) {
			out = append(out, flagZstd)
			return append(out, compressed...)
		}
	}
	out = append(out, flagRaw)
	return append(out, body...)
}

// decodeDocumentFrequency reads only the df prefix of a postings value.
func decodeDocumentFrequency(value []byte) (int, error) {
	df, n := binary.Uvarint(value)
	if n <= 0 {
		return 0, domain.Corruptf("bad document frequency header")
	}
	return int(df), nil
}

func decodePostings(value []byte) (domain.PostingsList, error) {
	df, n := binary.Uvarint(value)
	if n <= 0 || n >= len(value) {
		return nil, domain.Corruptf("bad postings header")
	}
	flag := value[n]
	body := value[n+1:]

	switch flag {
	case flagRaw:
	case flagZstd:
		dec := getZstdDecoder()
		raw, err := dec.DecodeAll(body, nil)
		putZstdDecoder(dec)
		if err != nil {
			return nil, domain.Corruptf("decompress postings: %v", err)
		}
		body = raw
	default:
		return nil, domain.Corruptf("unknown postings flag %d", flag)
	}

	list := make(domain.PostingsList, 0, df)
	r := varintReader{buf: body}
	var prevDoc uint32
	for len(r.buf) > 0 {
		delta, err := r.next()
		if err != nil {
			return nil, err
		}
		docID := uint32(delta)
		if len(list) > 0 {
			if delta == 0 {
				return nil, domain.Corruptf("duplicate docId %d in postings", prevDoc)
			}
			docID = prevDoc + uint32(delta)
		}
		prevDoc = docID

		freq, err := r.next()
		if err != nil {
			return nil, err
		}
		if freq == 0 {
			return nil, domain.Corruptf("empty posting for docId %d", docID)
		}
		positions := make([]int, freq)
		for j := range positions {
			d, err := r.next()
			if err != nil {
				return nil, err
			}
			if j == 0 {
				positions[j] = int(d)
				continue
			}
			if d == 0 {
				return nil, domain.Corruptf("repeated position in docId %d", docID)
			}
			positions[j] = positions[j-1] + int(d)
		}
		list = append(list, domain.Posting{DocID: docID, Frequency: int(freq), Positions: positions})
	}

	if uint64(len(list)) != df {
		return nil, domain.Corruptf("document frequency %d != %d postings", df, len(list))
	}
	return list, nil
}

type varintReader struct {
	buf []byte
}

func (r *varintReader) next() (uint64, error) {
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		return 0, fmt.Errorf("%w: truncated postings", domain.ErrIndexCorrupt)
	}
	r.buf = r.buf[n:]
	return v, nil
}

func docKey(id uint32) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), id)
}

func decodeDocKey(k []byte) (uint32, error) {
	if len(k) != 4 {
		return 0, domain.Corruptf("bad document key length %d", len(k))
	}
	return binary.BigEndian.Uint32(k), nil
}

// mergePostings appends newer postings after base. Every docId in newer
// must be greater than every docId in base.
func mergePostings(base, newer domain.PostingsList) domain.PostingsList {
	out := make(domain.PostingsList, 0, len(base)+len(newer))
	out = append(out, base...)
	return append(out, newer...)
}
