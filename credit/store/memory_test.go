package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/credit-engine/credit"
	"github.com/warp/credit-engine/credit/store"
)

func seedAccount(t *testing.T, mem *store.TxMemory) {
	t.Helper()
	require.NoError(t, mem.SaveAccount(context.Background(), credit.Account{
		ID:        "acc-1",
		Type:      credit.AccountCredit,
		Principal: credit.MustParseDecimal("1000"),
		Balance:   credit.MustParseDecimal("-1000"),
	}))
}

func pendingInstallment(id string, number int) credit.Installment {
	return credit.Installment{
		ID:            credit.InstallmentID(id),
		AccountID:     "acc-1",
		PaymentNumber: number,
		Status:        credit.StatusPending,
		PaidAmount:    credit.MustParseDecimal("0"),
	}
}

func TestMemory_InstallmentsOrderedByNumber(t *testing.T) {
	mem := store.NewTxMemory()
	seedAccount(t, mem)
	ctx := context.Background()

	require.NoError(t, mem.InsertInstallments(ctx, []credit.Installment{
		pendingInstallment("i-2", 2),
		pendingInstallment("i-1", 1),
		pendingInstallment("i-3", 3),
	}))

	installments, err := mem.Installments(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, installments, 3)
	for i, inst := range installments {
		assert.Equal(t, i+1, inst.PaymentNumber)
	}
}

func TestMemory_SoftDeleteHidesRows(t *testing.T) {
	mem := store.NewTxMemory()
	seedAccount(t, mem)
	ctx := context.Background()

	require.NoError(t, mem.InsertInstallments(ctx, []credit.Installment{pendingInstallment("i-1", 1)}))
	require.NoError(t, mem.DeleteInstallments(ctx, "acc-1", []credit.InstallmentID{"i-1"}))

	installments, err := mem.Installments(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, installments)

	_, err = mem.Installment(ctx, "i-1")
	assert.ErrorIs(t, err, credit.ErrInstallmentNotFound)
}

func TestMemory_WithTxRollback(t *testing.T) {
	mem := store.NewTxMemory()
	seedAccount(t, mem)
	ctx := context.Background()

	boom := errors.New("boom")
	err := mem.WithTx(ctx, func(s credit.Store) error {
		if err := s.InsertInstallments(ctx, []credit.Installment{pendingInstallment("i-1", 1)}); err != nil {
			return err
		}
		if err := s.UpdateAccountBalance(ctx, "acc-1", credit.MustParseDecimal("-1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	installments, err := mem.Installments(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, installments)

	account, err := mem.Account(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "-1000", account.Balance.String())
}

func TestMemory_WithTxCommit(t *testing.T) {
	mem := store.NewTxMemory()
	seedAccount(t, mem)
	ctx := context.Background()

	err := mem.WithTx(ctx, func(s credit.Store) error {
		return s.InsertInstallments(ctx, []credit.Installment{pendingInstallment("i-1", 1)})
	})
	require.NoError(t, err)

	installments, err := mem.Installments(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, installments, 1)
}
