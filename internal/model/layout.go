package model

import "strconv"

// Seat describes one position in a generated layout.  A nil *Seat in a
// row marks the aisle gap.
//
// Fields:
//  ID     – seat identifier like "A1"; unique within a showtime.
//  Row    – row label (A, B, ... AA for very large halls).
//  Number – seat number within the row, skipping the aisle.
type Seat struct {
	ID     string `json:"seat_id"` // display identifier, row label + number
	Row    string `json:"row"`     // row label
	Number int    `json:"number"`  // position within the row
}

// aisleCol is the 1-based column reserved as the walkway.  Seat numbers
// continue across it so that the seat to the right of the aisle follows
// the one to its left without a gap in numbering.
const aisleCol = 7

// GenerateLayout builds the deterministic seat grid for a hall of the
// given dimensions.  The same (rows, cols) input always produces the
// same layout, which is why layouts can be cached for a long time and
// never need invalidation.  Each row is a slice of *Seat where nil
// entries represent the aisle.
func GenerateLayout(rows, cols int) [][]*Seat {
	layout := make([][]*Seat, 0, rows)
	for r := 0; r < rows; r++ {
		label := rowLabel(r)
		row := make([]*Seat, 0, cols)
		for c := 1; c <= cols; c++ {
			if c == aisleCol {
				row = append(row, nil)
				continue
			}
			num := c
			if c > aisleCol {
				num = c - 1
			}
			row = append(row, &Seat{
				ID:     label + strconv.Itoa(num),
				Row:    label,
				Number: num,
			})
		}
		layout = append(layout, row)
	}
	return layout
}

// LayoutSeatIDs flattens a layout into the ordered list of seat
// identifiers, skipping aisle gaps.  The order is row-major and stable,
// so it can be compared against booked and reserved sets directly.
func LayoutSeatIDs(layout [][]*Seat) []string {
	ids := make([]string, 0, len(layout)*12)
	for _, row := range layout {
		for _, s := range row {
			if s != nil {
				ids = append(ids, s.ID)
			}
		}
	}
	return ids
}

// rowLabel converts a zero-based row index to an alphabetical label like
// A, B, ... Z, AA, AB.  Halls rarely exceed 26 rows but the encoding
// stays correct when they do.
func rowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var out []byte
	for {
		out = append([]byte{byte('A' + i%26)}, out...)
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	return string(out)
}
