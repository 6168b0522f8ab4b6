// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stake_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/stake"
)

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*database.Database, *models.Proposal) {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	p := &models.Proposal{
		ID:                "11111111-2222-3333-4444-555555555555",
		CreatorID:         "admin",
		Title:             "test",
		Kind:              models.ProposalKindProjectApproval,
		Status:            models.ProposalStatusActive,
		StartTime:         now,
		EndTime:           now.Add(time.Hour),
		MinTokensRequired: decimal.Zero,
		QuorumRequired:    decimal.NewFromInt(50),
		TotalTokensStaked: decimal.Zero,
		SupportTokens:     decimal.Zero,
		AgainstTokens:     decimal.Zero,
		AbstainTokens:     decimal.Zero,
	}
	require.NoError(t, db.DB().Create(p).Error)
	return db, p
}

func inTxn(t *testing.T, db *database.Database, fn func(*database.Txn) error) error {
	t.Helper()
	return db.Transaction(context.Background(), fn)
}

func TestStakeAccumulates(t *testing.T) {
	db, p := setup(t)
	ledger := stake.NewLedger(time.Hour)
	assert.Equal(t, time.Hour, ledger.LockWindow())
	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		for _, amount := range []int64{10, 15, 25} {
			if _, err := ledger.Stake(txn, p, stake.Input{
				ParticipantID: "alice",
				WalletID:      "w1",
				Amount:        decimal.NewFromInt(amount),
			}, now); err != nil {
				return err
			}
		}
		_, err := ledger.Stake(txn, p, stake.Input{
			ParticipantID: "bob",
			Amount:        decimal.NewFromInt(5),
		}, now)
		return err
	}))
	assert.True(t, p.TotalTokensStaked.Equal(decimal.NewFromInt(55)))
	assert.Equal(t, int64(2), p.TotalStakers)

	reader := db.Reader(context.Background())
	rows, err := ledger.List(reader, p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].ParticipantID)
	assert.True(t, rows[0].TokenAmount.Equal(decimal.NewFromInt(50)))
	assert.True(t, rows[0].LockUntil.Equal(p.EndTime.Add(time.Hour)))
	assert.True(t, rows[0].RewardAmount.IsZero())

	sum, err := ledger.SumActive(reader, p.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(p.TotalTokensStaked))

	deposits, err := ledger.Deposits(reader, rows[0].ID)
	require.NoError(t, err)
	assert.Len(t, deposits, 3)
}

func TestStakePreconditions(t *testing.T) {
	db, p := setup(t)
	ledger := stake.NewLedger(0)
	assert.Equal(t, models.DefaultLockWindow, ledger.LockWindow())
	testDefs := []struct {
		name string
		in   stake.Input
		at   time.Time
		mod  func(*models.Proposal)
		err  error
	}{
		{"zero amount", stake.Input{ParticipantID: "a", Amount: decimal.Zero}, now, nil, models.ErrInvalidAmount},
		{"negative amount", stake.Input{ParticipantID: "a", Amount: decimal.NewFromInt(-1)}, now, nil, models.ErrInvalidAmount},
		{"missing participant", stake.Input{Amount: decimal.NewFromInt(1)}, now, nil, models.ErrInvalidInput},
		{"expired", stake.Input{ParticipantID: "a", Amount: decimal.NewFromInt(1)}, now.Add(2 * time.Hour), nil, models.ErrProposalExpired},
		{
			"draft",
			stake.Input{ParticipantID: "a", Amount: decimal.NewFromInt(1)},
			now,
			func(p *models.Proposal) { p.Status = models.ProposalStatusDraft },
			models.ErrProposalNotActive,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			cp := *p
			if testDef.mod != nil {
				testDef.mod(&cp)
			}
			err := inTxn(t, db, func(txn *database.Txn) error {
				_, err := ledger.Stake(txn, &cp, testDef.in, testDef.at)
				return err
			})
			require.ErrorIs(t, err, testDef.err)
			assert.True(t, cp.TotalTokensStaked.IsZero())
		})
	}
	rows, err := ledger.List(db.Reader(context.Background()), p.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUnstakeAndRestake(t *testing.T) {
	db, p := setup(t)
	ledger := stake.NewLedger(time.Hour)
	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		_, err := ledger.Stake(txn, p, stake.Input{
			ParticipantID: "alice",
			Amount:        decimal.NewFromInt(70),
		}, now)
		return err
	}))
	err := inTxn(t, db, func(txn *database.Txn) error {
		_, err := ledger.Unstake(txn, p, "alice", p.EndTime)
		return err
	})
	require.ErrorIs(t, err, models.ErrStakeLocked)

	unlock := p.EndTime.Add(time.Hour)
	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		row, err := ledger.Unstake(txn, p, "alice", unlock)
		if err != nil {
			return err
		}
		assert.Equal(t, models.StakeStatusUnstaked, row.Status)
		return nil
	}))
	assert.True(t, p.TotalTokensStaked.IsZero())
	assert.Equal(t, int64(0), p.TotalStakers)

	err = inTxn(t, db, func(txn *database.Txn) error {
		_, err := ledger.Unstake(txn, p, "alice", unlock)
		return err
	})
	require.ErrorIs(t, err, models.ErrNoActiveStake)

	// A new stake opens a fresh row next to the withdrawn one
	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		_, err := ledger.Stake(txn, p, stake.Input{
			ParticipantID: "alice",
			Amount:        decimal.NewFromInt(5),
		}, now)
		return err
	}))
	rows, err := ledger.List(db.Reader(context.Background()), p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StakeStatusActive, rows[1].Status)
	assert.True(t, rows[1].TokenAmount.Equal(decimal.NewFromInt(5)))
}

func TestSingleActiveRowEnforced(t *testing.T) {
	db, p := setup(t)
	row := models.Stake{
		ProposalID:    p.ID,
		ParticipantID: "alice",
		TokenAmount:   decimal.NewFromInt(1),
		Status:        models.StakeStatusActive,
		StakedAt:      now,
		LockUntil:     now,
		RewardAmount:  decimal.Zero,
		PenaltyAmount: decimal.Zero,
	}
	require.NoError(t, db.DB().Create(&row).Error)
	dup := row
	dup.ID = 0
	err := db.DB().Create(&dup).Error
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	// Withdrawn rows do not count
	withdrawn := row
	withdrawn.ID = 0
	withdrawn.Status = models.StakeStatusUnstaked
	require.NoError(t, db.DB().Create(&withdrawn).Error)
}

func TestDepositVerification(t *testing.T) {
	db, p := setup(t)
	ledger := stake.NewLedger(0)
	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		for _, ref := range []string{"0xaa", "", "0xbb"} {
			if _, err := ledger.Stake(txn, p, stake.Input{
				ParticipantID: "alice",
				Amount:        decimal.NewFromInt(1),
				TxReference:   ref,
			}, now); err != nil {
				return err
			}
		}
		return nil
	}))
	reader := db.Reader(context.Background())
	pending, err := ledger.PendingDeposits(reader, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "0xaa", pending[0].TxReference)

	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		return ledger.MarkDepositVerified(txn, pending[0].ID, now)
	}))
	row, err := ledger.Active(reader, p.ID, "alice")
	require.NoError(t, err)
	assert.False(t, row.IsVerifiedOnChain)
	assert.Equal(t, "0xbb", row.TxReference)

	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		return ledger.MarkDepositVerified(txn, pending[1].ID, now)
	}))
	row, err = ledger.Active(reader, p.ID, "alice")
	require.NoError(t, err)
	assert.True(t, row.IsVerifiedOnChain)

	pending, err = ledger.PendingDeposits(reader, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = inTxn(t, db, func(txn *database.Txn) error {
		return ledger.MarkDepositVerified(txn, 999, now)
	})
	require.ErrorIs(t, err, models.ErrStakeNotFound)
}

func TestDepositRejection(t *testing.T) {
	db, p := setup(t)
	ledger := stake.NewLedger(0)
	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		for _, ref := range []string{"0xaa", "0xbb", ""} {
			if _, err := ledger.Stake(txn, p, stake.Input{
				ParticipantID: "alice",
				Amount:        decimal.NewFromInt(1),
				TxReference:   ref,
			}, now); err != nil {
				return err
			}
		}
		return nil
	}))
	reader := db.Reader(context.Background())
	row, err := ledger.Active(reader, p.ID, "alice")
	require.NoError(t, err)
	deposits, err := ledger.Deposits(reader, row.ID)
	require.NoError(t, err)
	require.Len(t, deposits, 3)
	assert.Equal(t, models.DepositStatusPending, deposits[0].VerificationStatus)
	assert.Equal(t, models.DepositStatusUnreferenced, deposits[2].VerificationStatus)

	err = inTxn(t, db, func(txn *database.Txn) error {
		return ledger.MarkDepositRejected(txn, deposits[0].ID, models.DepositStatusVerified, now)
	})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		return ledger.MarkDepositRejected(txn, deposits[0].ID, models.DepositStatusReverted, now)
	}))
	// A second result for a final deposit is ignored
	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		return ledger.MarkDepositRejected(txn, deposits[0].ID, models.DepositStatusInvalid, now)
	}))
	pending, err := ledger.PendingDeposits(reader, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "0xbb", pending[0].TxReference)

	// The reverted deposit keeps the stake unverified
	require.NoError(t, inTxn(t, db, func(txn *database.Txn) error {
		return ledger.MarkDepositVerified(txn, pending[0].ID, now)
	}))
	row, err = ledger.Active(reader, p.ID, "alice")
	require.NoError(t, err)
	assert.False(t, row.IsVerifiedOnChain)
	deposits, err = ledger.Deposits(reader, row.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusReverted, deposits[0].VerificationStatus)
	assert.Equal(t, models.DepositStatusVerified, deposits[1].VerificationStatus)
	assert.True(t, deposits[0].VerificationStatus.Final())

	err = inTxn(t, db, func(txn *database.Txn) error {
		return ledger.MarkDepositRejected(txn, 999, models.DepositStatusInvalid, now)
	})
	require.ErrorIs(t, err, models.ErrStakeNotFound)
}
