package promo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type adminStubStore struct {
	*stubStore
	createErr error
}

func (s *adminStubStore) CreatePromo(_ context.Context, p Promo) (Promo, error) {
	if s.createErr != nil {
		return Promo{}, s.createErr
	}
	s.promos[strings.ToLower(p.Code)] = p
	return p, nil
}

func (s *adminStubStore) UpdatePromo(_ context.Context, p Promo) (Promo, error) {
	if _, ok := s.promos[strings.ToLower(p.Code)]; !ok {
		return Promo{}, ErrNotFound
	}
	s.promos[strings.ToLower(p.Code)] = p
	return p, nil
}

func (s *adminStubStore) ListPromos(context.Context) ([]Promo, error) {
	out := make([]Promo, 0, len(s.promos))
	for _, p := range s.promos {
		out = append(out, p)
	}
	return out, nil
}

func TestCreateDuplicateCodeConflict(t *testing.T) {
	store := &adminStubStore{
		stubStore: newStubStore(),
		createErr: fmt.Errorf("create promo: %w", &pgconn.PgError{Code: "23505"}),
	}
	h := &Handler{Store: store}

	body := strings.NewReader(`{"code":"HEMAT10","scope":"all","kind":"percentage","value":10}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/promos", body)
	resp := httptest.NewRecorder()
	h.Create(resp, req)

	require.Equal(t, http.StatusConflict, resp.Code)
	require.Contains(t, resp.Body.String(), "CONFLICT")
}

func TestCreatePromoSuccess(t *testing.T) {
	store := &adminStubStore{stubStore: newStubStore()}
	h := &Handler{Store: store}

	body := strings.NewReader(`{"code":"HEMAT10","scope":"all","kind":"percentage","value":10}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/promos", body)
	resp := httptest.NewRecorder()
	h.Create(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	_, ok := store.promos["hemat10"]
	require.True(t, ok)
}
