package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Reader resolves the nested view of a building.
type Reader interface {
	GetByAddress(ctx context.Context, address string) (*HouseView, error)
}

// Creator registers new buildings.
type Creator interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResponse, error)
}

type Service interface {
	Reader
	Creator
}

type Repository interface {
	FindRowsByAddress(ctx context.Context, db *gorm.DB, address string) ([]HouseRow, error)
	InsertBuilding(ctx context.Context, db *gorm.DB, building *Building) error
}

type CreateRequest struct {
	Address string `json:"house_street"`
}

type CreateResponse struct {
	HouseID string `json:"house_id"`
}

var (
	ErrHouseNotFound  = errors.New("house_not_found")
	ErrInvalidAddress = errors.New("invalid_house_street")
	ErrAddressExists  = errors.New("house_exists")
)
