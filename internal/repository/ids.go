package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

var vectorSeq atomic.Uint64

// IDGenerator issues vector IDs for one run: <run>-<seq>-<hash>, where seq
// is process-wide and hash covers the chunk's path and text.
type IDGenerator struct {
	run string
	seq *atomic.Uint64
}

// NewIDGenerator starts a run with a fresh random run id.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{run: uuid.NewString(), seq: &vectorSeq}
}

// NewIDGeneratorWith uses a fixed run id and counter. Meant for tests.
func NewIDGeneratorWith(run string, seq *atomic.Uint64) *IDGenerator {
	return &IDGenerator{run: run, seq: seq}
}

// Run returns the run id.
func (g *IDGenerator) Run() string { return g.run }

// Next returns a new ID.
func (g *IDGenerator) Next(path, text string) string {
	n := g.seq.Add(1)
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(text))
	sum := hex.EncodeToString(h.Sum(nil))
	return g.run + "-" + strconv.FormatUint(n, 10) + "-" + sum[:12]
}
