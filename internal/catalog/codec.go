package catalog

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Field widths for the fixed-size on-disk record shared by every disk-
// resident engine (ISAM, AVL, B+Tree): little-endian tuple of fields in
// a fixed field order, with fixed-width utf-8-padded strings
// (trailing NUL bytes and spaces stripped on read).
const (
	nameWidth     = 64
	cityWidth     = 48
	addressWidth  = 96
	cuisinesWidth = 96
	currencyWidth = 16
	ratingWidth   = 16
)

// RecordSize is the fixed encoded size of one Record.
const RecordSize = 4 /*id*/ + nameWidth + cityWidth + 2 /*country*/ + addressWidth +
	cuisinesWidth + 4 /*avg cost*/ + currencyWidth + 1 + 1 + 1 /*bools*/ +
	4 /*price range*/ + 8 /*rating*/ + ratingWidth + 4 /*votes*/ + 8 + 8 /*lon,lat*/

func putString(dst []byte, s string) {
	b := []byte(s)
	if len(b) > len(dst) {
		b = b[:len(dst)]
	}
	copy(dst, b)
	for i := len(b); i < len(dst); i++ {
		dst[i] = 0
	}
}

func getString(src []byte) string {
	n := len(src)
	for n > 0 && (src[n-1] == 0 || src[n-1] == ' ') {
		n--
	}
	return string(src[:n])
}

func putBool(dst *byte, b bool) {
	if b {
		*dst = 1
	} else {
		*dst = 0
	}
}

// EncodeRecord serialises r into a freshly-allocated RecordSize buffer.
func EncodeRecord(r Record) []byte {
	buf := make([]byte, RecordSize)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], r.RestaurantID)
	off += 4

	putString(buf[off:off+nameWidth], r.Name)
	off += nameWidth

	putString(buf[off:off+cityWidth], r.City)
	off += cityWidth

	binary.LittleEndian.PutUint16(buf[off:], r.CountryCode)
	off += 2

	putString(buf[off:off+addressWidth], r.Address)
	off += addressWidth

	putString(buf[off:off+cuisinesWidth], r.Cuisines)
	off += cuisinesWidth

	binary.LittleEndian.PutUint32(buf[off:], uint32(r.AvgCostForTwo))
	off += 4

	putString(buf[off:off+currencyWidth], r.Currency)
	off += currencyWidth

	putBool(&buf[off], r.HasTableBooking)
	off++
	putBool(&buf[off], r.HasOnlineDelivery)
	off++
	putBool(&buf[off], r.IsDeliveringNow)
	off++

	binary.LittleEndian.PutUint32(buf[off:], uint32(r.PriceRange))
	off += 4

	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(r.AggregateRating))
	off += 8

	putString(buf[off:off+ratingWidth], r.RatingText)
	off += ratingWidth

	binary.LittleEndian.PutUint32(buf[off:], uint32(r.Votes))
	off += 4

	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(r.Longitude))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(r.Latitude))
	off += 8

	return buf
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(buf []byte) (Record, error) {
	var r Record
	if len(buf) != RecordSize {
		return r, fmt.Errorf("catalog: record buffer is %d bytes, want %d", len(buf), RecordSize)
	}
	off := 0

	r.RestaurantID = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	r.Name = getString(buf[off : off+nameWidth])
	off += nameWidth

	r.City = getString(buf[off : off+cityWidth])
	off += cityWidth

	r.CountryCode = binary.LittleEndian.Uint16(buf[off:])
	off += 2

	r.Address = getString(buf[off : off+addressWidth])
	off += addressWidth

	r.Cuisines = getString(buf[off : off+cuisinesWidth])
	off += cuisinesWidth

	r.AvgCostForTwo = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	r.Currency = getString(buf[off : off+currencyWidth])
	off += currencyWidth

	r.HasTableBooking = buf[off] != 0
	off++
	r.HasOnlineDelivery = buf[off] != 0
	off++
	r.IsDeliveringNow = buf[off] != 0
	off++

	r.PriceRange = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	r.AggregateRating = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8

	r.RatingText = getString(buf[off : off+ratingWidth])
	off += ratingWidth

	r.Votes = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	r.Longitude = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	r.Latitude = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8

	return r, nil
}
