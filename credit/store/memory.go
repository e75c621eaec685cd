// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/credit-engine/credit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	accounts     map[credit.AccountID]credit.Account
	installments map[credit.InstallmentID]installmentRow
}

// installmentRow carries the soft-delete flag alongside the record.
type installmentRow struct {
	inst    credit.Installment
	deleted bool
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[credit.AccountID]credit.Account),
		installments: make(map[credit.InstallmentID]installmentRow),
	}
}

func (m *Memory) Account(_ context.Context, id credit.AccountID) (*credit.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountLocked(id)
}

func (m *Memory) accountLocked(id credit.AccountID) (*credit.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, credit.ErrAccountNotFound
	}
	copied := account
	return &copied, nil
}

func (m *Memory) SaveAccount(_ context.Context, account credit.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *Memory) UpdateAccountBalance(_ context.Context, id credit.AccountID, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBalanceLocked(id, balance)
}

func (m *Memory) updateBalanceLocked(id credit.AccountID, balance decimal.Decimal) error {
	account, ok := m.accounts[id]
	if !ok {
		return credit.ErrAccountNotFound
	}
	account.Balance = balance
	m.accounts[id] = account
	return nil
}

func (m *Memory) Installments(_ context.Context, accountID credit.AccountID) ([]credit.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.installmentsLocked(accountID), nil
}

func (m *Memory) installmentsLocked(accountID credit.AccountID) []credit.Installment {
	var result []credit.Installment
	for _, row := range m.installments {
		if row.deleted || row.inst.AccountID != accountID {
			continue
		}
		result = append(result, row.inst)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PaymentNumber < result[j].PaymentNumber
	})
	return result
}

func (m *Memory) Installment(_ context.Context, id credit.InstallmentID) (*credit.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.installmentLocked(id)
}

func (m *Memory) installmentLocked(id credit.InstallmentID) (*credit.Installment, error) {
	row, ok := m.installments[id]
	if !ok || row.deleted {
		return nil, credit.ErrInstallmentNotFound
	}
	copied := row.inst
	return &copied, nil
}

func (m *Memory) InsertInstallments(_ context.Context, installments []credit.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range installments {
		m.installments[inst.ID] = installmentRow{inst: inst}
	}
	return nil
}

func (m *Memory) UpdateInstallment(_ context.Context, inst credit.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateInstallmentLocked(inst)
}

func (m *Memory) updateInstallmentLocked(inst credit.Installment) error {
	row, ok := m.installments[inst.ID]
	if !ok || row.deleted {
		return credit.ErrInstallmentNotFound
	}
	row.inst = inst
	m.installments[inst.ID] = row
	return nil
}

func (m *Memory) DeleteInstallments(_ context.Context, accountID credit.AccountID, ids []credit.InstallmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		row, ok := m.installments[id]
		if !ok || row.inst.AccountID != accountID {
			continue
		}
		row.deleted = true
		m.installments[id] = row
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(credit.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts     map[credit.AccountID]credit.Account
	installments map[credit.InstallmentID]installmentRow
}

func (tm *TxMemory) snapshot() memorySnapshot {
	accounts := make(map[credit.AccountID]credit.Account, len(tm.accounts))
	for k, v := range tm.accounts {
		accounts[k] = v
	}
	installments := make(map[credit.InstallmentID]installmentRow, len(tm.installments))
	for k, v := range tm.installments {
		installments[k] = v
	}
	return memorySnapshot{accounts: accounts, installments: installments}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.accounts = s.accounts
	tm.installments = s.installments
}

// txMemoryView forwards writes to the already-locked parent.
type txMemoryView struct {
	parent *Memory
}

func (v *txMemoryView) Account(_ context.Context, id credit.AccountID) (*credit.Account, error) {
	return v.parent.accountLocked(id)
}

func (v *txMemoryView) SaveAccount(_ context.Context, account credit.Account) error {
	v.parent.accounts[account.ID] = account
	return nil
}

func (v *txMemoryView) UpdateAccountBalance(_ context.Context, id credit.AccountID, balance decimal.Decimal) error {
	return v.parent.updateBalanceLocked(id, balance)
}

func (v *txMemoryView) Installments(_ context.Context, accountID credit.AccountID) ([]credit.Installment, error) {
	return v.parent.installmentsLocked(accountID), nil
}

func (v *txMemoryView) Installment(_ context.Context, id credit.InstallmentID) (*credit.Installment, error) {
	return v.parent.installmentLocked(id)
}

func (v *txMemoryView) InsertInstallments(_ context.Context, installments []credit.Installment) error {
	for _, inst := range installments {
		v.parent.installments[inst.ID] = installmentRow{inst: inst}
	}
	return nil
}

func (v *txMemoryView) UpdateInstallment(_ context.Context, inst credit.Installment) error {
	return v.parent.updateInstallmentLocked(inst)
}

func (v *txMemoryView) DeleteInstallments(_ context.Context, accountID credit.AccountID, ids []credit.InstallmentID) error {
	for _, id := range ids {
		row, ok := v.parent.installments[id]
		if !ok || row.inst.AccountID != accountID {
			continue
		}
		row.deleted = true
		v.parent.installments[id] = row
	}
	return nil
}
