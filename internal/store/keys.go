package store

import (
	"encoding/binary"
	"math"

	"github.com/mmcdole/mangashelf/internal/domain"
)

// Index keys are an 8-byte big-endian sort value followed by the manga ID,
// so byte order equals (value, ID) order. Descending orders store the
// complemented value to keep ID ascending among ties.

const sortValueLen = 8

func sortableFloat(f float64) uint64 {
	if f == 0 {
		f = 0 // fold -0 into +0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | 1<<63
}

func sortableInt(v int64) uint64 {
	return uint64(v) ^ 1<<63
}

func sortValue(sort domain.SortType, m domain.Manga) uint64 {
	switch sort.Normalize() {
	case domain.SortScoreAsc:
		return sortableFloat(m.Score)
	case domain.SortScoreDesc:
		return ^sortableFloat(m.Score)
	case domain.SortPopularityAsc:
		return sortableInt(int64(m.Popularity))
	case domain.SortPopularityDesc:
		return ^sortableInt(int64(m.Popularity))
	default:
		return sortableInt(m.PublishedAt)
	}
}

func indexKey(sort domain.SortType, m domain.Manga) []byte {
	key := make([]byte, sortValueLen+len(m.ID))
	binary.BigEndian.PutUint64(key, sortValue(sort, m))
	copy(key[sortValueLen:], m.ID)
	return key
}

func idFromIndexKey(key []byte) []byte {
	if len(key) < sortValueLen {
		return nil
	}
	return key[sortValueLen:]
}
