package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/housebill/internal/house/aggregator"
	"github.com/smallbiznis/housebill/internal/house/domain"
	obsmetrics "github.com/smallbiznis/housebill/internal/observability/metrics"
	"github.com/smallbiznis/housebill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Metrics *obsmetrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	metrics *obsmetrics.BillingMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("house.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) GetByAddress(ctx context.Context, address string) (*domain.HouseView, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.ErrInvalidAddress
	}

	rows, err := s.repo.FindRowsByAddress(ctx, s.db, address)
	if err != nil {
		s.metrics.IncHouseLookup(obsmetrics.HouseLookupError)
		return nil, err
	}
	if len(rows) == 0 {
		s.metrics.IncHouseLookup(obsmetrics.HouseLookupNotFound)
		return nil, domain.ErrHouseNotFound
	}

	view := aggregator.Build(rows)
	s.metrics.IncHouseLookup(obsmetrics.HouseLookupFound)
	s.log.Debug("house.lookup",
		zap.String("house_id", view.HouseID),
		zap.Int("row_count", len(rows)),
		zap.Int("flat_count", len(view.Flats)),
	)
	return view, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.CreateResponse, error) {
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, domain.ErrInvalidAddress
	}

	building := domain.Building{
		ID:      s.genID.Generate(),
		Address: address,
	}
	if err := s.repo.InsertBuilding(ctx, s.db, &building); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAddressExists
		}
		return nil, err
	}

	s.log.Info("house.created", zap.String("house_id", building.ID.String()))
	return &domain.CreateResponse{HouseID: building.ID.String()}, nil
}
