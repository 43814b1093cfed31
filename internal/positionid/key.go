package positionid

import (
	"fmt"
)

// KeyLength is the size in bytes of a Key.
const KeyLength = 10

// IDLength is the length of a position ID string.
const IDLength = 14

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Key is the 80-bit packed form of a board. Points are visited side 0 first,
// ace point to bar; each chequer is a 1 bit and each point ends with a 0 bit.
// Game records store positions by this key so the layout must not change.
type Key [KeyLength]byte

// String returns the position ID of the key.
func (k Key) String() string {
	return k.ID()
}

func (k *Key) setBits(pos, n uint) {
	idx := pos / 8
	bits := ((uint32(1) << n) - 1) << (pos & 7)
	for i := idx; i < KeyLength && bits != 0; i++ {
		k[i] |= byte(bits)
		bits >>= 8
	}
}

// PositionKey packs b into its Key. Boards holding more than 15 chequers a
// side do not fit and are packed as far as the 80 bits allow.
func PositionKey(b Board) Key {
	var k Key
	var pos uint
	for side := 0; side < 2; side++ {
		for i := 0; i < 25; i++ {
			n := uint(b[side][i])
			if pos+n > 8*KeyLength {
				return k
			}
			if n > 0 {
				k.setBits(pos, n)
			}
			pos += n + 1
		}
	}
	return k
}

// KeyToPosition unpacks a Key. It is the inverse of PositionKey for every
// board accepted by CheckPosition.
func KeyToPosition(k Key) (Board, error) {
	var b Board
	side, point := 0, 0

	for _, cur := range k {
		for bit := 0; bit < 8; bit++ {
			if cur&1 != 0 {
				if side >= 2 {
					return Board{}, fmt.Errorf("%w: chequers past end of board", ErrInvalidKey)
				}
				b[side][point]++
			} else if side < 2 {
				point++
				if point == 25 {
					side++
					point = 0
				}
			}
			cur >>= 1
		}
	}

	for s := 0; s < 2; s++ {
		if n := Chequers(b, s); n > NumChequers {
			return Board{}, fmt.Errorf("%w: side %d has %d chequers", ErrInvalidKey, s, n)
		}
	}
	return b, nil
}

// ID returns the 14 character base64 position ID of the key.
func (k Key) ID() string {
	out := make([]byte, IDLength)
	p := k[:]
	for i := 0; i < 3; i++ {
		out[i*4] = base64Chars[p[0]>>2]
		out[i*4+1] = base64Chars[(p[0]&0x03)<<4|p[1]>>4]
		out[i*4+2] = base64Chars[(p[1]&0x0f)<<2|p[2]>>6]
		out[i*4+3] = base64Chars[p[2]&0x3f]
		p = p[3:]
	}
	out[12] = base64Chars[p[0]>>2]
	out[13] = base64Chars[(p[0]&0x03)<<4]
	return string(out)
}

// PositionID returns the gnubg position ID of b.
func PositionID(b Board) string {
	return PositionKey(b).ID()
}

func decode64(ch byte) (byte, bool) {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return ch - 'A', true
	case ch >= 'a' && ch <= 'z':
		return ch - 'a' + 26, true
	case ch >= '0' && ch <= '9':
		return ch - '0' + 52, true
	case ch == '+':
		return 62, true
	case ch == '/':
		return 63, true
	}
	return 0, false
}

// BoardFromPositionID decodes a position ID and validates the result.
func BoardFromPositionID(id string) (Board, error) {
	if len(id) < IDLength {
		return Board{}, fmt.Errorf("%w: %q is too short", ErrInvalidPositionID, id)
	}

	var v [IDLength]byte
	for i := 0; i < IDLength; i++ {
		c, ok := decode64(id[i])
		if !ok {
			return Board{}, fmt.Errorf("%w: bad character %q", ErrInvalidPositionID, id[i])
		}
		v[i] = c
	}

	var k Key
	for i := 0; i < 3; i++ {
		c := v[i*4 : i*4+4]
		k[i*3] = c[0]<<2 | c[1]>>4
		k[i*3+1] = c[1]<<4 | c[2]>>2
		k[i*3+2] = c[2]<<6 | c[3]
	}
	k[9] = v[12]<<2 | v[13]>>4

	b, err := KeyToPosition(k)
	if err != nil {
		return Board{}, fmt.Errorf("%w: %v", ErrInvalidPositionID, err)
	}
	if err := CheckPosition(b); err != nil {
		return Board{}, fmt.Errorf("%w: %v", ErrInvalidPositionID, err)
	}
	return b, nil
}
