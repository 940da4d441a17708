package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ranker/internal/domain"
)

func TestPostingsCodec_RoundTrip(t *testing.T) {
	small := domain.PostingsList{
		{DocID: 3, Frequency: 2, Positions: []int{0, 7}},
		{DocID: 9, Frequency: 1, Positions: []int{4}},
	}
	value := encodePostings(small)
	assert.Equal(t, flagRaw, value[1])

	got, err := decodePostings(value)
	require.NoError(t, err)
	assert.Equal(t, small, got)

	df, err := decodeDocumentFrequency(value)
	require.NoError(t, err)
	assert.Equal(t, 2, df)
}

func TestPostingsCodec_CompressesLargeLists(t *testing.T) {
	var large domain.PostingsList
	for i := uint32(0); i < 500; i++ {
		large = append(large, domain.Posting{DocID: i * 2, Frequency: 3, Positions: []int{1, 2, 3}})
	}
	value := encodePostings(large)

	df, err := decodeDocumentFrequency(value)
	require.NoError(t, err)
	assert.Equal(t, 500, df)

	got, err := decodePostings(value)
	require.NoError(t, err)
	assert.Equal(t, large, got)
}

func TestPostingsCodec_RejectsBrokenValues(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
	}{
		{"empty", nil},
		{"header only", []byte{1}},
		{"unknown flag", []byte{1, 9, 0, 1, 0}},
		{"truncated", []byte{1, flagRaw, 0, 2, 0}},
		{"duplicate doc", []byte{2, flagRaw, 4, 1, 0, 0, 1, 0}},
		{"zero frequency", []byte{1, flagRaw, 4, 0}},
		{"repeated position", []byte{1, flagRaw, 4, 2, 3, 0}},
		{"df mismatch", []byte{2, flagRaw, 4, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePostings(tt.value)
			assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
		})
	}
}

func TestMergePostings(t *testing.T) {
	base := domain.PostingsList{{DocID: 0, Frequency: 1, Positions: []int{0}}}
	newer := domain.PostingsList{{DocID: 4, Frequency: 1, Positions: []int{2}}}

	merged := mergePostings(base, newer)
	assert.Equal(t, []uint32{0, 4}, docIDs(merged))
	assert.Len(t, base, 1, "inputs are not modified")
}

func TestDocKey(t *testing.T) {
	id, err := decodeDocKey(docKey(70000))
	require.NoError(t, err)
	assert.Equal(t, uint32(70000), id)

	_, err = decodeDocKey([]byte{1, 2})
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}
