// Package bearoff reads gnubg bearoff databases (.bd files): one-sided
// distributions of rolls needed to bear off, exact two-sided cubeless
// equities and hypergammon outputs.
package bearoff

import (
	"errors"
	"fmt"
	"math"

	"github.com/bgforge/gnubgcore/internal/datafile"
	"github.com/bgforge/gnubgcore/internal/positionid"
)

// Type identifies the kind of bearoff database.
type Type int

const (
	TypeInvalid Type = iota
	TypeOneSided
	TypeTwoSided
	TypeHypergammon
)

func (t Type) String() string {
	switch t {
	case TypeOneSided:
		return "one-sided"
	case TypeTwoSided:
		return "two-sided"
	case TypeHypergammon:
		return "hypergammon"
	}
	return "invalid"
}

const headerSize = 40

// MaxRolls is the length of a one-sided distribution.
const MaxRolls = 32

// ErrInvalidDatabase is returned for unreadable or malformed databases and
// for lookups outside the database.
var ErrInvalidDatabase = errors.New("invalid bearoff database")

// Database is a loaded bearoff database. It is read-only and safe for
// concurrent use.
type Database struct {
	Type       Type
	NPoints    int
	NChequers  int
	Compressed bool
	HasGammon  bool
	ND         bool
	Cubeful    bool

	data []byte
}

// Load reads a database from disk. Files ending in ".zst" are decompressed.
func Load(filename string) (*Database, error) {
	data, err := datafile.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read bearoff database: %w", err)
	}
	db, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return db, nil
}

// Parse interprets data as a bearoff database, header included.
func Parse(data []byte) (*Database, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidDatabase, len(data))
	}
	header := string(data[:headerSize])
	if header[:5] != "gnubg" {
		return nil, fmt.Errorf("%w: missing gnubg magic", ErrInvalidDatabase)
	}

	db := &Database{data: data}
	switch {
	case header[6:8] == "OS":
		db.Type = TypeOneSided
	case header[6:8] == "TS":
		db.Type = TypeTwoSided
	case header[6] == 'H':
		db.Type = TypeHypergammon
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidDatabase, header[6:8])
	}

	if db.Type == TypeHypergammon {
		db.NPoints = 25
		db.NChequers = int(header[7] - '0')
		if db.NChequers < 1 || db.NChequers > 3 {
			return nil, fmt.Errorf("%w: hypergammon with %d chequers", ErrInvalidDatabase, db.NChequers)
		}
		return db, nil
	}

	if _, err := fmt.Sscanf(header[9:14], "%02d-%02d", &db.NPoints, &db.NChequers); err != nil {
		return nil, fmt.Errorf("%w: points/chequers: %v", ErrInvalidDatabase, err)
	}
	if db.NPoints < 1 || db.NPoints > 18 || db.NChequers < 1 || db.NChequers > 15 {
		return nil, fmt.Errorf("%w: %d points %d chequers", ErrInvalidDatabase, db.NPoints, db.NChequers)
	}
	if db.Type == TypeOneSided {
		db.HasGammon = header[15] == '1'
		db.Compressed = header[17] == '1'
		db.ND = header[19] == '1'
	} else {
		db.Cubeful = header[15] == '1'
	}
	return db, nil
}

// NumPositions returns the number of one-sided positions covered.
func (db *Database) NumPositions() int {
	return positionid.Combination(db.NPoints+db.NChequers, db.NPoints)
}

// Covers reports whether both sides of b lie within the database.
func (db *Database) Covers(b positionid.Board) bool {
	return positionid.IsBearoff(b, db.NPoints, db.NChequers)
}

// Evaluate returns the five cubeless outputs for the side on roll (b[1]).
func (db *Database) Evaluate(b positionid.Board) ([5]float32, error) {
	if !db.Covers(b) {
		return [5]float32{}, fmt.Errorf("%w: position outside %s database", ErrInvalidDatabase, db.Type)
	}
	switch db.Type {
	case TypeOneSided:
		return db.evaluateOneSided(b)
	case TypeTwoSided:
		return db.evaluateTwoSided(b)
	case TypeHypergammon:
		return db.evaluateHypergammon(b)
	}
	return [5]float32{}, fmt.Errorf("%w: unsupported type", ErrInvalidDatabase)
}

func (db *Database) index(side [25]uint8) int {
	return positionid.BearoffIndex(side[:db.NPoints], db.NPoints, db.NChequers)
}

func (db *Database) evaluateOneSided(b positionid.Board) ([5]float32, error) {
	var out [5]float32
	var prob, gammon [2][MaxRolls]float32
	for side := 0; side < 2; side++ {
		var err error
		prob[side], gammon[side], err = db.Distribution(db.index(b[side]))
		if err != nil {
			return out, err
		}
	}

	// the side on roll wins ties
	for i := 0; i < MaxRolls; i++ {
		for j := i; j < MaxRolls; j++ {
			out[0] += prob[1][i] * prob[0][j]
		}
	}

	if !db.HasGammon {
		return out, nil
	}
	if positionid.Chequers(b, 0) == positionid.NumChequers {
		for i := 0; i < MaxRolls; i++ {
			for j := i; j < MaxRolls; j++ {
				out[1] += prob[1][i] * gammon[0][j]
			}
		}
	}
	if positionid.Chequers(b, 1) == positionid.NumChequers {
		for i := 0; i < MaxRolls; i++ {
			for j := i + 1; j < MaxRolls; j++ {
				out[3] += prob[0][i] * gammon[1][j]
			}
		}
	}
	return out, nil
}

func (db *Database) evaluateTwoSided(b positionid.Board) ([5]float32, error) {
	var out [5]float32
	n := db.NumPositions()
	pos := db.index(b[1])*n + db.index(b[0])

	size := 2
	if db.Cubeful {
		size = 8
	}
	off := headerSize + pos*size
	if off+2 > len(db.data) {
		return out, fmt.Errorf("%w: position %d out of range", ErrInvalidDatabase, pos)
	}
	v := uint16(db.data[off]) | uint16(db.data[off+1])<<8
	eq := float32(v)/32767.5 - 1
	out[0] = eq/2 + 0.5
	return out, nil
}

func (db *Database) evaluateHypergammon(b positionid.Board) ([5]float32, error) {
	var out [5]float32
	n := db.NumPositions()
	pos := db.index(b[1])*n + db.index(b[0])

	const recordSize = 28
	off := headerSize + pos*recordSize
	if off+recordSize > len(db.data) {
		return out, fmt.Errorf("%w: position %d out of range", ErrInvalidDatabase, pos)
	}
	p := db.data[off:]
	for i := 0; i < 5; i++ {
		x := uint32(p[3*i]) | uint32(p[3*i+1])<<8 | uint32(p[3*i+2])<<16
		out[i] = float32(x) / 16777215
	}
	return out, nil
}

// Distribution returns the probability of bearing off in exactly i rolls and
// the probability of bearing off the first chequer in exactly i rolls, for
// one-sided position id.
func (db *Database) Distribution(id int) (prob, gammon [MaxRolls]float32, err error) {
	if db.Type != TypeOneSided {
		return prob, gammon, fmt.Errorf("%w: %s database has no distributions", ErrInvalidDatabase, db.Type)
	}
	if id < 0 || id >= db.NumPositions() {
		return prob, gammon, fmt.Errorf("%w: position %d out of range", ErrInvalidDatabase, id)
	}
	switch {
	case db.ND:
		return db.distributionND(id)
	case db.Compressed:
		return db.distributionCompressed(id)
	}
	return db.distributionPlain(id)
}

func (db *Database) u16(off int) float32 {
	return float32(uint16(db.data[off])|uint16(db.data[off+1])<<8) / 65535
}

func (db *Database) f32(off int) float32 {
	return math.Float32frombits(uint32(db.data[off]) | uint32(db.data[off+1])<<8 |
		uint32(db.data[off+2])<<16 | uint32(db.data[off+3])<<24)
}

func (db *Database) distributionND(id int) (prob, gammon [MaxRolls]float32, err error) {
	off := headerSize + id*16
	if off+16 > len(db.data) {
		return prob, gammon, fmt.Errorf("%w: position %d out of range", ErrInvalidDatabase, id)
	}
	mean, sd := db.f32(off), db.f32(off+4)
	gmean, gsd := db.f32(off+8), db.f32(off+12)
	for i := 0; i < MaxRolls; i++ {
		prob[i] = normalDensity(float32(i), mean, sd)
		gammon[i] = normalDensity(float32(i), gmean, gsd)
	}
	return prob, gammon, nil
}

func (db *Database) distributionCompressed(id int) (prob, gammon [MaxRolls]float32, err error) {
	entry := 6
	if db.HasGammon {
		entry = 8
	}
	idx := headerSize + id*entry
	if idx+entry > len(db.data) {
		return prob, gammon, fmt.Errorf("%w: position %d out of range", ErrInvalidDatabase, id)
	}
	d := db.data[idx:]
	dataOff := int(d[0]) | int(d[1])<<8 | int(d[2])<<16 | int(d[3])<<24
	nz, ioff := int(d[4]), int(d[5])
	var nzg, ioffg int
	if db.HasGammon {
		nzg, ioffg = int(d[6]), int(d[7])
	}
	if ioff+nz > MaxRolls || ioffg+nzg > MaxRolls {
		return prob, gammon, fmt.Errorf("%w: corrupt index for position %d", ErrInvalidDatabase, id)
	}

	off := headerSize + db.NumPositions()*entry + 2*dataOff
	if off+2*(nz+nzg) > len(db.data) {
		return prob, gammon, fmt.Errorf("%w: data for position %d out of range", ErrInvalidDatabase, id)
	}
	for i := 0; i < nz; i++ {
		prob[ioff+i] = db.u16(off + 2*i)
	}
	off += 2 * nz
	for i := 0; i < nzg; i++ {
		gammon[ioffg+i] = db.u16(off + 2*i)
	}
	return prob, gammon, nil
}

func (db *Database) distributionPlain(id int) (prob, gammon [MaxRolls]float32, err error) {
	size := 2 * MaxRolls
	if db.HasGammon {
		size *= 2
	}
	off := headerSize + id*size
	if off+size > len(db.data) {
		return prob, gammon, fmt.Errorf("%w: position %d out of range", ErrInvalidDatabase, id)
	}
	for i := 0; i < MaxRolls; i++ {
		prob[i] = db.u16(off + 2*i)
	}
	if db.HasGammon {
		for i := 0; i < MaxRolls; i++ {
			gammon[i] = db.u16(off + 2*MaxRolls + 2*i)
		}
	}
	return prob, gammon, nil
}

func normalDensity(x, mu, sigma float32) float32 {
	const epsilon = 1e-7
	if sigma <= epsilon {
		if d := mu - x; d < epsilon && d > -epsilon {
			return 1
		}
		return 0
	}
	xm := float64((x - mu) / sigma)
	return float32(math.Exp(-xm*xm/2) / (float64(sigma) * math.Sqrt(2*math.Pi)))
}

// AverageRolls returns the mean and standard deviation of a distribution.
func AverageRolls(prob [MaxRolls]float32) (mean, stddev float32) {
	var sx, sx2 float32
	for i := 1; i < MaxRolls; i++ {
		p := float32(i) * prob[i]
		sx += p
		sx2 += float32(i) * p
	}
	if v := sx2 - sx*sx; v > 0 {
		stddev = float32(math.Sqrt(float64(v)))
	}
	return sx, stddev
}

// MaxTurns returns the largest number of rolls with non-zero probability of
// bearing off the side, or -1 when points lie outside the database.
func (db *Database) MaxTurns(points []uint8) int {
	if db.Type != TypeOneSided || len(points) < db.NPoints {
		return -1
	}
	for i := db.NPoints; i < len(points); i++ {
		if points[i] > 0 {
			return -1
		}
	}
	n := 0
	for i := 0; i < db.NPoints; i++ {
		n += int(points[i])
	}
	if n > db.NChequers {
		return -1
	}
	prob, _, err := db.Distribution(positionid.BearoffIndex(points, db.NPoints, db.NChequers))
	if err != nil {
		return -1
	}
	for i := MaxRolls - 1; i >= 0; i-- {
		if prob[i] > 0 {
			return i
		}
	}
	return -1
}
