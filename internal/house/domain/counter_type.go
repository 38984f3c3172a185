package domain

import "fmt"

// CounterType is the kind of utility a counter measures.
type CounterType int

const (
	CounterGas CounterType = iota
	CounterElectricity
	CounterWater
	CounterHeat
)

var counterTypeNames = [...]string{"Gas", "Electricity", "Water", "Heat"}

func (t CounterType) Valid() bool {
	return t >= CounterGas && t <= CounterHeat
}

func (t CounterType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("CounterType(%d)", int(t))
	}
	return counterTypeNames[t]
}
