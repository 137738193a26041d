package domain

type SeatState string

const (
	SeatAvailable   SeatState = "AVAILABLE"
	SeatSold        SeatState = "SOLD"
	SeatUnavailable SeatState = "UNAVAILABLE"
)

type SeatCell struct {
	Row   int       `json:"row"`
	Col   int       `json:"col"`
	Label string    `json:"label,omitempty"`
	State SeatState `json:"state"`
}

type SeatMap struct {
	SessionID string       `json:"session_id"`
	HallName  string       `json:"hall_name"`
	Grid      [][]SeatCell `json:"grid"`
	TenantID  string       `json:"tenant_id"`
}

// Available counts seats still open for sale.
func (m *SeatMap) Available() int {
	n := 0
	for _, row := range m.Grid {
		for _, c := range row {
			if c.State == SeatAvailable {
				n++
			}
		}
	}
	return n
}
