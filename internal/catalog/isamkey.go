package catalog

import "fmt"

// IsamKeySize is 64 (name) + 48 (city) + 10 (id) = 122 bytes.
const IsamKeySize = 122

const (
	nameFieldSize = 64
	cityFieldSize = 48
	idFieldSize   = 10
)

// SentinelID is the synthetic high id used by Search when an exact id is
// unknown: large enough that the synthesised key sorts
// after every real id sharing the same (name, city) prefix.
const SentinelID = 9_999_999_999

// IsamKey is the bytewise-lexicographic ordering key derived from a record:
// normalize(name)[:64] ++ normalize(city)[:48] ++ zero-padded-decimal(id,10).
// Fields shorter than their slot are NUL-padded on the right, which keeps
// byte ordering consistent with string ordering (NUL sorts below any
// printable rune the normalized alphabet produces).
type IsamKey [IsamKeySize]byte

// MakeIsamKey derives the ordering key for (name, city, id). id may be
// SentinelID when the caller only knows (name, city).
func MakeIsamKey(name, city string, id uint64) IsamKey {
	var k IsamKey
	packField(k[0:nameFieldSize], Normalize(name))
	packField(k[nameFieldSize:nameFieldSize+cityFieldSize], Normalize(city))
	copy(k[nameFieldSize+cityFieldSize:], []byte(fmt.Sprintf("%010d", id)))
	return k
}

func packField(dst []byte, s string) {
	b := []byte(s)
	if len(b) > len(dst) {
		b = b[:len(dst)]
	}
	copy(dst, b)
	// remaining bytes of dst are already zero (NUL) from the zero-valued array
}

// Less reports whether k orders strictly before other, bytewise.
func (k IsamKey) Less(other IsamKey) bool {
	for i := range k {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return false
}

// Compare returns -1, 0, or 1 like bytes.Compare.
func (k IsamKey) Compare(other IsamKey) int {
	for i := range k {
		if k[i] != other[i] {
			if k[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (k IsamKey) Bytes() []byte {
	out := make([]byte, IsamKeySize)
	copy(out, k[:])
	return out
}

func IsamKeyFromBytes(b []byte) (IsamKey, error) {
	var k IsamKey
	if len(b) != IsamKeySize {
		return k, fmt.Errorf("catalog: isam key must be %d bytes, got %d", IsamKeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// KeyOf derives the ordering key for a concrete record.
func KeyOf(r Record) IsamKey {
	return MakeIsamKey(r.Name, r.City, uint64(r.RestaurantID))
}
