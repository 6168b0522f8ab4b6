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

package verifier

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	receipts map[common.Hash]*types.Receipt
	head     uint64
	err      error
}

func (f *fakeChain) TransactionReceipt(
	_ context.Context,
	hash common.Hash,
) (*types.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func txHash(b byte) string {
	return "0x" + strings.Repeat(string("0123456789abcdef"[b&0xf]), 64)
}

func TestEthereumVerifier(t *testing.T) {
	mined := txHash(1)
	reverted := txHash(2)
	chain := &fakeChain{
		receipts: map[common.Hash]*types.Receipt{
			common.HexToHash(mined): {
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(100),
			},
			common.HexToHash(reverted): {
				Status:      types.ReceiptStatusFailed,
				BlockNumber: big.NewInt(100),
			},
		},
		head: 101,
	}
	v := &EthereumVerifier{client: chain, confirmations: 3}
	ctx := context.Background()

	status, err := v.Verify(ctx, mined)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status, "two confirmations are not enough")

	chain.head = 102
	status, err = v.Verify(ctx, mined)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)

	status, err = v.Verify(ctx, reverted)
	require.NoError(t, err)
	assert.Equal(t, StatusReverted, status)

	status, err = v.Verify(ctx, txHash(3))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	chain.err = errors.New("connection refused")
	_, err = v.Verify(ctx, mined)
	require.Error(t, err)
	// Closing a verifier without a connection is harmless
	v.Close()
}

func TestParseHash(t *testing.T) {
	_, err := parseHash(txHash(4))
	require.NoError(t, err)
	for _, ref := range []string{"", "abc", "0x1234", "0x" + strings.Repeat("zz", 32)} {
		_, err := parseHash(ref)
		require.ErrorIs(t, err, ErrInvalidReference, ref)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "confirmed", StatusConfirmed.String())
	assert.Equal(t, "unknown", Status(9).String())
}
