// Package blockstream extracts marker-delimited data blocks from an
// incrementally streamed assistant turn.
//
// The assistant interleaves free-form text with structured payloads wrapped
// in a well-known open/close marker pair. Chunks arrive in arbitrary sizes,
// so a marker may be split across two chunks; the [Extractor] rescans a
// held-back suffix of previously seen text to catch that. Blocks never nest:
// an open marker seen while a block is already open is ordinary payload text
// and the scan keeps looking for the closer.
//
// The extractor owns the transcript for the duration of one turn. A block
// that never closes before the turn ends is not reported; its text remains
// visible in the transcript for display.
package blockstream

import "strings"

// Markers is the open/close marker pair bounding a data block.
type Markers struct {
	Open  string
	Close string
}

// Default is the marker pair the coaching assistant is prompted to emit.
var Default = Markers{Open: "<plan-data>", Close: "</plan-data>"}

// Block is a closed, marker-bounded payload found in the transcript.
type Block struct {
	// Payload is the text between the markers, markers excluded.
	Payload string

	// Start is the byte offset of the open marker in the transcript.
	Start int

	// End is the byte offset just past the close marker.
	End int
}

// Extractor accumulates the transcript of one assistant turn and reports
// blocks as they close. It holds only the transcript and the position up to
// which closures have already been scanned; [Extractor.Feed] has no side
// effects beyond that.
type Extractor struct {
	markers    Markers
	transcript strings.Builder

	// scanned is the transcript offset up to which the closure scan is
	// complete. Text before it can no longer start or close a block.
	scanned int

	// open is the offset of the current block's open marker, -1 when no
	// block is open.
	open int
}

// New creates an extractor for the given marker pair.
// Zero-value markers fall back to [Default].
func New(m Markers) *Extractor {
	if m.Open == "" || m.Close == "" {
		m = Default
	}
	return &Extractor{markers: m, open: -1}
}

// Feed appends chunk to the transcript and returns the blocks that closed
// since the previous call, in document order. More than one block may close
// within a single chunk.
func (x *Extractor) Feed(chunk string) []Block {
	if chunk == "" {
		return nil
	}
	x.transcript.WriteString(chunk)
	return x.scan()
}

// Transcript returns the full text seen so far, markers and payloads
// included.
func (x *Extractor) Transcript() string {
	return x.transcript.String()
}

// Open reports whether a block is currently open (its closer not yet seen).
func (x *Extractor) Open() bool {
	return x.open >= 0
}

func (x *Extractor) scan() []Block {
	s := x.transcript.String()
	var blocks []Block
	for {
		if x.open < 0 {
			i := strings.Index(s[x.scanned:], x.markers.Open)
			if i < 0 {
				// Hold back len(open)-1 bytes so an open marker split
				// across the chunk boundary is still found next time.
				x.holdBack(len(s), len(x.markers.Open))
				return blocks
			}
			x.open = x.scanned + i
			x.scanned = x.open + len(x.markers.Open)
		}
		j := strings.Index(s[x.scanned:], x.markers.Close)
		if j < 0 {
			x.holdBack(len(s), len(x.markers.Close))
			return blocks
		}
		payloadEnd := x.scanned + j
		end := payloadEnd + len(x.markers.Close)
		blocks = append(blocks, Block{
			Payload: s[x.open+len(x.markers.Open) : payloadEnd],
			Start:   x.open,
			End:     end,
		})
		x.open = -1
		x.scanned = end
	}
}

// holdBack advances the scan position to the end of the transcript minus
// markerLen-1 bytes, never moving it backward.
func (x *Extractor) holdBack(total, markerLen int) {
	if n := total - (markerLen - 1); n > x.scanned {
		x.scanned = n
	}
}
