// Package aggregator folds building LEFT JOIN rows into the nested house view.
//
// A flat with c counters, h history records and i inhabitants appears in up to
// c*h*i rows, so every child collection is deduplicated by its own id. The
// package holds no state and performs no I/O.
package aggregator

import (
	"strconv"
	"strings"

	housedomain "github.com/smallbiznis/housebill/internal/house/domain"
)

type flatState struct {
	view        *housedomain.FlatView
	counters    map[int64]struct{}
	history     map[int64]struct{}
	inhabitants map[int64]struct{}
}

// Build aggregates rows into a HouseView. Flats are keyed by flat id; the
// house id is taken from the first row. Empty input yields an empty view.
func Build(rows []housedomain.HouseRow) *housedomain.HouseView {
	view := &housedomain.HouseView{
		Flats: map[string]*housedomain.FlatView{},
	}
	if len(rows) == 0 {
		return view
	}
	view.HouseID = formatID(rows[0].HouseID)

	states := make(map[int64]*flatState)
	for i := range rows {
		row := &rows[i]
		if row.FlatID == nil {
			continue
		}

		state, ok := states[*row.FlatID]
		if !ok {
			state = newFlatState(row)
			states[*row.FlatID] = state
			view.Flats[state.view.FlatID] = state.view
		}

		if state.view.Balance == nil && row.Balance != nil {
			balance := *row.Balance
			state.view.Balance = &balance
		}
		state.addCounter(row)
		state.addHistory(row)
		state.addInhabitant(row)
	}

	return view
}

// ResidentName returns the display name of an inhabitant, synthesizing one
// from the id when the stored name is missing or blank.
func ResidentName(id int64, name *string) string {
	if name != nil {
		if trimmed := strings.TrimSpace(*name); trimmed != "" {
			return trimmed
		}
	}
	return "Resident " + formatID(id)
}

func newFlatState(row *housedomain.HouseRow) *flatState {
	return &flatState{
		view: &housedomain.FlatView{
			FlatID:         formatID(*row.FlatID),
			FlatNumber:     intValue(row.FlatNumber),
			FlatFloor:      intValue(row.FlatFloor),
			Square:         intValue(row.Square),
			Counters:       []housedomain.CounterView{},
			CounterHistory: []housedomain.CounterHistoryView{},
			Inhabitants:    []housedomain.InhabitantView{},
		},
		counters:    map[int64]struct{}{},
		history:     map[int64]struct{}{},
		inhabitants: map[int64]struct{}{},
	}
}

func (s *flatState) addCounter(row *housedomain.HouseRow) {
	if row.CounterID == nil {
		return
	}
	if _, seen := s.counters[*row.CounterID]; seen {
		return
	}
	s.counters[*row.CounterID] = struct{}{}

	counterType := housedomain.CounterType(intValue(row.CounterType))
	s.view.Counters = append(s.view.Counters, housedomain.CounterView{
		ID:              formatID(*row.CounterID),
		CounterType:     int(counterType),
		CounterTypeName: counterType.String(),
		LastReading:     row.CounterLastReading,
		CurrentReading:  row.CounterCurrentReading,
	})
}

func (s *flatState) addHistory(row *housedomain.HouseRow) {
	if row.HistoryID == nil {
		return
	}
	if _, seen := s.history[*row.HistoryID]; seen {
		return
	}
	s.history[*row.HistoryID] = struct{}{}

	entry := housedomain.CounterHistoryView{
		ID:      formatID(*row.HistoryID),
		Date:    row.HistoryDate,
		Reading: row.HistoryReading,
	}
	if row.HistoryCounterID != nil {
		entry.CounterID = formatID(*row.HistoryCounterID)
	}
	s.view.CounterHistory = append(s.view.CounterHistory, entry)
}

func (s *flatState) addInhabitant(row *housedomain.HouseRow) {
	if row.InhabitantID == nil {
		return
	}
	if _, seen := s.inhabitants[*row.InhabitantID]; seen {
		return
	}
	s.inhabitants[*row.InhabitantID] = struct{}{}

	s.view.Inhabitants = append(s.view.Inhabitants, housedomain.InhabitantView{
		ID:       formatID(*row.InhabitantID),
		FullName: ResidentName(*row.InhabitantID, row.InhabitantName),
		Age:      row.InhabitantAge,
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func intValue(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
