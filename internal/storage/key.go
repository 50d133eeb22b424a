package storage

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/dshills/codeindex/pkg/types"
)

// ChunkKey identifies a chunk by where it is and what it holds
type ChunkKey [16]byte

// KeyOf returns the xxh3-128 hash of the chunk's path, byte range and
// content digest. Re-emitting an identical chunk yields the same key.
func KeyOf(c *types.Chunk) ChunkKey {
	buf := make([]byte, 0, len(c.SourcePath)+2*binary.MaxVarintLen64+len(c.ContentHash)+2)
	buf = append(buf, c.SourcePath...)
	buf = append(buf, 0)
	buf = strconv.AppendInt(buf, int64(c.StartOffset), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(c.EndOffset), 10)
	buf = append(buf, 0)
	buf = append(buf, c.ContentHash[:]...)

	h := xxh3.Hash128(buf)
	var k ChunkKey
	binary.BigEndian.PutUint64(k[:8], h.Hi)
	binary.BigEndian.PutUint64(k[8:], h.Lo)
	return k
}

func (k ChunkKey) String() string {
	return hex.EncodeToString(k[:])
}
