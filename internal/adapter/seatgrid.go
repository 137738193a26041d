package adapter

import (
	"encoding/json"

	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/pkg/apperrors"
)

// parseSeatGrid normalizes the three grid shapes seen in the wild: a matrix
// of seat objects, a list of row objects each holding a seats list, and a
// flat seat list positioned by row/col fields.
func parseSeatGrid(tenantID string, root record) ([][]domain.SeatCell, error) {
	const op = "seats"

	var gridRaw any
	for _, key := range seatGridAliases {
		if v, ok := root[key]; ok && v != nil {
			gridRaw = v
			break
		}
	}
	if gridRaw == nil {
		return nil, apperrors.NewNormalizationError(op, tenantID, 0, "no seat grid in payload")
	}

	raw, err := json.Marshal(gridRaw)
	if err != nil {
		return nil, apperrors.NewNormalizationError(op, tenantID, 0, "seat grid not re-encodable")
	}

	// Shape 1: matrix.
	var matrix [][]record
	if err := json.Unmarshal(raw, &matrix); err == nil && len(matrix) > 0 {
		return cellsFromMatrix(matrix), nil
	}

	var flat []record
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, apperrors.NewNormalizationError(op, tenantID, len(raw), "unrecognized seat grid shape")
	}
	if len(flat) == 0 {
		return nil, nil
	}

	// Shape 2: row objects with nested seats.
	if _, hasNested := flat[0]["seats"]; hasNested {
		var matrix [][]record
		for _, row := range flat {
			nested, err := json.Marshal(row["seats"])
			if err != nil {
				continue
			}
			var seats []record
			if err := json.Unmarshal(nested, &seats); err != nil {
				return nil, apperrors.NewNormalizationError(op, tenantID, len(raw), "malformed nested seat row")
			}
			matrix = append(matrix, seats)
		}
		return cellsFromMatrix(matrix), nil
	}

	// Shape 3: flat list positioned by row/col.
	return cellsFromFlat(flat), nil
}

func cellsFromMatrix(matrix [][]record) [][]domain.SeatCell {
	grid := make([][]domain.SeatCell, len(matrix))
	for i, row := range matrix {
		grid[i] = make([]domain.SeatCell, len(row))
		for j, seat := range row {
			grid[i][j] = toCell(seat, i+1, j+1)
		}
	}
	return grid
}

func cellsFromFlat(flat []record) [][]domain.SeatCell {
	maxRow, maxCol := 0, 0
	for _, seat := range flat {
		if r := seat.intVal(seatRowAliases...); r > maxRow {
			maxRow = r
		}
		if c := seat.intVal(seatColAliases...); c > maxCol {
			maxCol = c
		}
	}
	if maxRow == 0 || maxCol == 0 {
		return nil
	}

	grid := make([][]domain.SeatCell, maxRow)
	for i := range grid {
		grid[i] = make([]domain.SeatCell, maxCol)
		for j := range grid[i] {
			grid[i][j] = domain.SeatCell{Row: i + 1, Col: j + 1, State: domain.SeatUnavailable}
		}
	}
	for _, seat := range flat {
		r := seat.intVal(seatRowAliases...)
		c := seat.intVal(seatColAliases...)
		if r < 1 || r > maxRow || c < 1 || c > maxCol {
			continue
		}
		grid[r-1][c-1] = toCell(seat, r, c)
	}
	return grid
}

func toCell(seat record, row, col int) domain.SeatCell {
	if r := seat.intVal(seatRowAliases...); r > 0 {
		row = r
	}
	if c := seat.intVal(seatColAliases...); c > 0 {
		col = c
	}
	return domain.SeatCell{
		Row:   row,
		Col:   col,
		Label: seat.str(seatLabelAliases...),
		State: domain.SeatState(seatStateOf(seat.str(seatStatusAliases...))),
	}
}
