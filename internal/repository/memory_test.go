package repository_test

import (
	"context"
	"testing"

	"pos-service/internal/domain"
	"pos-service/internal/repository"
	"pos-service/internal/repository/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return repository.NewInMemoryStore()
	})
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryStore()
	p := storetest.NewProduct("Milk", 2, 5)
	require.NoError(t, store.SaveProduct(ctx, p))

	p.Quantity = 99
	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)

	got.Quantity = 42
	again, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Quantity)
}

func TestCloneSale_DeepCopiesItems(t *testing.T) {
	sale := &domain.Sale{Items: []domain.CartLine{{ProductID: "p1", Quantity: 1}}}

	clone := repository.CloneSale(sale)
	clone.Items[0].Quantity = 7

	assert.Equal(t, 1, sale.Items[0].Quantity)
}
