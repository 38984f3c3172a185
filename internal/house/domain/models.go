package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Building is addressed by its street address; lookups go through the address.
type Building struct {
	ID      snowflake.ID `json:"id" gorm:"primaryKey"`
	Address string       `json:"address" gorm:"type:text;not null;uniqueIndex:ux_buildings_address"`
}

func (Building) TableName() string { return "buildings" }

type Flat struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	BuildingID snowflake.ID `json:"building_id" gorm:"not null;index:ix_flats_building_number,priority:1"`
	FlatNumber int          `json:"flat_number" gorm:"not null;index:ix_flats_building_number,priority:2"`
	FlatFloor  int          `json:"flat_floor" gorm:"not null"`
	Square     int          `json:"square" gorm:"not null"`
}

func (Flat) TableName() string { return "flats" }

// Counter is a physical meter installed in a flat.
type Counter struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	FlatID         snowflake.ID `json:"flat_id" gorm:"not null;index"`
	CounterType    CounterType  `json:"counter_type" gorm:"not null"`
	LastReading    *float64     `json:"last_reading"`
	CurrentReading *float64     `json:"current_reading"`
}

func (Counter) TableName() string { return "counters" }

type CounterHistory struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CounterID snowflake.ID `json:"counter_id" gorm:"not null;index"`
	Date      time.Time    `json:"date" gorm:"not null"`
	Reading   float64      `json:"reading" gorm:"not null"`
}

func (CounterHistory) TableName() string { return "counter_history" }

type Inhabitant struct {
	ID       snowflake.ID `json:"id" gorm:"primaryKey"`
	FlatID   snowflake.ID `json:"flat_id" gorm:"not null;index"`
	FullName *string      `json:"full_name"`
	Age      int          `json:"age" gorm:"not null"`
}

func (Inhabitant) TableName() string { return "inhabitants" }

type FlatBalance struct {
	ID      snowflake.ID `json:"id" gorm:"primaryKey"`
	FlatID  snowflake.ID `json:"flat_id" gorm:"not null;uniqueIndex"`
	Balance int64        `json:"balance" gorm:"not null;default:0"`
}

func (FlatBalance) TableName() string { return "flat_balances" }
