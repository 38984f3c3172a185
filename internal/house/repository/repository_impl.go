package repository

import (
	"context"

	"github.com/smallbiznis/housebill/internal/house/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const houseRowsQuery = `SELECT
	b.id AS house_id,
	f.id AS flat_id,
	f.flat_number AS flat_number,
	f.flat_floor AS flat_floor,
	f.square AS square,
	c.id AS counter_id,
	c.counter_type AS counter_type,
	c.last_reading AS counter_last_reading,
	c.current_reading AS counter_current_reading,
	ch.id AS counter_history_id,
	ch.counter_id AS history_counter_id,
	ch.date AS history_date,
	ch.reading AS history_reading,
	i.id AS inhabitant_id,
	i.full_name AS inhabitant_name,
	i.age AS inhabitant_age,
	fb.balance AS balance
FROM buildings b
LEFT JOIN flats f ON f.building_id = b.id
LEFT JOIN counters c ON c.flat_id = f.id
LEFT JOIN counter_history ch ON ch.counter_id = c.id
LEFT JOIN inhabitants i ON i.flat_id = f.id
LEFT JOIN flat_balances fb ON fb.flat_id = f.id
WHERE b.address = ?
ORDER BY f.id, c.id, ch.id, i.id`

func (r *repo) FindRowsByAddress(ctx context.Context, db *gorm.DB, address string) ([]domain.HouseRow, error) {
	var rows []domain.HouseRow
	if err := db.WithContext(ctx).Raw(houseRowsQuery, address).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) InsertBuilding(ctx context.Context, db *gorm.DB, building *domain.Building) error {
	if building == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO buildings (id, address) VALUES (?, ?)`,
		building.ID,
		building.Address,
	).Error
}
