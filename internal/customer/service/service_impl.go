package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/pyrosafe/fieldops/internal/customer/domain"
	"github.com/pyrosafe/fieldops/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	customers repository.Repository[customerdomain.Customer]
	sites     repository.Repository[customerdomain.Site]
}

func NewService(p Params) customerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,

		customers: repository.ProvideStore[customerdomain.Customer](p.DB),
		sites:     repository.ProvideStore[customerdomain.Site](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return customerdomain.Customer{}, customerdomain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return customerdomain.Customer{}, customerdomain.ErrInvalidEmail
	}

	customer := customerdomain.Customer{
		ID:      s.genID.Generate(),
		Name:    name,
		Email:   email,
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	}
	if err := s.customers.Create(ctx, &customer); err != nil {
		return customerdomain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (customerdomain.Customer, error) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return customerdomain.Customer{}, customerdomain.ErrNotFound
	}

	item, err := s.customers.FindOne(ctx, &customerdomain.Customer{ID: customerID})
	if err != nil {
		return customerdomain.Customer{}, err
	}
	if item == nil {
		return customerdomain.Customer{}, customerdomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]customerdomain.Customer, error) {
	items, err := s.customers.Find(ctx, &customerdomain.Customer{}, repository.WithOrder("created_at DESC"))
	if err != nil {
		return nil, err
	}

	customers := make([]customerdomain.Customer, 0, len(items))
	for _, item := range items {
		customers = append(customers, *item)
	}
	return customers, nil
}

func (s *Service) CreateSite(ctx context.Context, req customerdomain.CreateSiteRequest) (customerdomain.Site, error) {
	customer, err := s.GetByID(ctx, req.CustomerID)
	if err != nil {
		return customerdomain.Site{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return customerdomain.Site{}, customerdomain.ErrInvalidName
	}

	site := customerdomain.Site{
		ID:         s.genID.Generate(),
		CustomerID: customer.ID,
		Name:       name,
		Address:    strings.TrimSpace(req.Address),
	}
	if err := s.sites.Create(ctx, &site); err != nil {
		return customerdomain.Site{}, err
	}
	return site, nil
}

func (s *Service) ListSites(ctx context.Context, customerID string) ([]customerdomain.Site, error) {
	customer, err := s.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	items, err := s.sites.Find(ctx, &customerdomain.Site{CustomerID: customer.ID}, repository.WithOrder("created_at ASC"))
	if err != nil {
		return nil, err
	}

	sites := make([]customerdomain.Site, 0, len(items))
	for _, item := range items {
		sites = append(sites, *item)
	}
	return sites, nil
}
