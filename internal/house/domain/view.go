package domain

import "time"

// HouseRow is one record of the building LEFT JOIN result. Every column past
// the building id is nullable because a building may have no flats and a flat
// may have no counters, history, inhabitants or balance.
type HouseRow struct {
	HouseID int64 `gorm:"column:house_id"`

	FlatID     *int64 `gorm:"column:flat_id"`
	FlatNumber *int   `gorm:"column:flat_number"`
	FlatFloor  *int   `gorm:"column:flat_floor"`
	Square     *int   `gorm:"column:square"`

	CounterID             *int64   `gorm:"column:counter_id"`
	CounterType           *int     `gorm:"column:counter_type"`
	CounterLastReading    *float64 `gorm:"column:counter_last_reading"`
	CounterCurrentReading *float64 `gorm:"column:counter_current_reading"`

	HistoryID        *int64     `gorm:"column:counter_history_id"`
	HistoryCounterID *int64     `gorm:"column:history_counter_id"`
	HistoryDate      *time.Time `gorm:"column:history_date"`
	HistoryReading   *float64   `gorm:"column:history_reading"`

	InhabitantID   *int64  `gorm:"column:inhabitant_id"`
	InhabitantName *string `gorm:"column:inhabitant_name"`
	InhabitantAge  *int    `gorm:"column:inhabitant_age"`

	Balance *int64 `gorm:"column:balance"`
}

// HouseView is the nested building -> flats projection returned to clients.
type HouseView struct {
	HouseID string               `json:"house_id"`
	Flats   map[string]*FlatView `json:"flats"`
}

type FlatView struct {
	FlatID         string               `json:"flat_id"`
	FlatNumber     int                  `json:"flat_number"`
	FlatFloor      int                  `json:"flat_floor"`
	Square         int                  `json:"square"`
	Counters       []CounterView        `json:"counters"`
	CounterHistory []CounterHistoryView `json:"counter_history"`
	Inhabitants    []InhabitantView     `json:"inhabitants"`
	Balance        *int64               `json:"balance"`
}

type CounterView struct {
	ID              string   `json:"id"`
	CounterType     int      `json:"counter_type"`
	CounterTypeName string   `json:"counter_type_name"`
	LastReading     *float64 `json:"last_reading"`
	CurrentReading  *float64 `json:"current_reading"`
}

type CounterHistoryView struct {
	ID        string     `json:"id"`
	CounterID string     `json:"counter_id"`
	Date      *time.Time `json:"date"`
	Reading   *float64   `json:"reading"`
}

type InhabitantView struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Age      *int   `json:"age"`
}
