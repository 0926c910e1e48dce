package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lokastore/storefront-api/internal/pricing"
)

// ErrPackageNotFound indicates the requested shipping package is unknown to
// every courier.
var ErrPackageNotFound = errors.New("shipping package not found")

// Service lists couriers and resolves discounted shipping costs. Courier and
// package data come from the provider; package quotes are fetched lazily per
// courier and cached in Redis for the session TTL.
type Service struct {
	Provider Provider
	R        *redis.Client
	TTL      time.Duration
	Logger   *zerolog.Logger
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 15 * time.Minute
	}
	return s.TTL
}

// Couriers returns the carrier list from the provider.
func (s *Service) Couriers(ctx context.Context) ([]Courier, error) {
	if s == nil || s.Provider == nil {
		return nil, errors.New("shipping provider not configured")
	}
	return s.Provider.Couriers(ctx)
}

// Packages returns the rate options for a courier, serving from cache when
// available.
func (s *Service) Packages(ctx context.Context, courierID string) ([]Package, error) {
	if s == nil || s.Provider == nil {
		return nil, errors.New("shipping provider not configured")
	}
	key := "shipping:packages:" + courierID
	if s.R != nil {
		data, err := s.R.Get(ctx, key).Bytes()
		if err == nil {
			var cached []Package
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.Logger != nil {
			s.Logger.Warn().Err(err).Str("courier", courierID).Msg("shipping cache read failed")
		}
	}
	packages, err := s.Provider.Packages(ctx, courierID)
	if err != nil {
		return nil, err
	}
	if s.R != nil {
		if data, err := json.Marshal(packages); err == nil {
			_ = s.R.Set(ctx, key, data, s.ttl()).Err()
		}
	}
	return packages, nil
}

// FindPackage locates a package by ID via reverse search over couriers and
// returns it together with its owning courier. A package no courier owns
// yields a nil courier.
func (s *Service) FindPackage(ctx context.Context, packageID string) (Package, *Courier, error) {
	couriers, err := s.Couriers(ctx)
	if err != nil {
		return Package{}, nil, err
	}
	for i := range couriers {
		packages, err := s.Packages(ctx, couriers[i].ID)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn().Err(err).Str("courier", couriers[i].ID).Msg("skip courier during package lookup")
			}
			continue
		}
		for _, pkg := range packages {
			if pkg.ID == packageID {
				return pkg, &couriers[i], nil
			}
		}
	}
	return Package{}, nil, ErrPackageNotFound
}

// Cost resolves a package and applies its courier discount for the given
// order subtotal.
func (s *Service) Cost(ctx context.Context, packageID string, subtotal pricing.Money) (pricing.Money, error) {
	pkg, courier, err := s.FindPackage(ctx, packageID)
	if err != nil {
		return 0, err
	}
	return Fee(pkg, courier, subtotal), nil
}
