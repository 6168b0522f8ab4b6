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

// Package verifier confirms stake deposits against the chain that carried
// the token transfer. Confirmation only flips the verification flags; it
// never changes amounts or aggregates.
package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrInvalidReference = errors.New("verifier: invalid transaction reference")

type Status int

const (
	// StatusPending means the transaction is unknown or not deep enough yet
	StatusPending Status = iota
	StatusConfirmed
	// StatusReverted means the transaction was mined but failed
	StatusReverted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Verifier reports the on-chain status of a transaction reference
type Verifier interface {
	Verify(ctx context.Context, txReference string) (Status, error)
}

// VerifierFunc adapts a function to Verifier
type VerifierFunc func(context.Context, string) (Status, error)

func (f VerifierFunc) Verify(ctx context.Context, ref string) (Status, error) {
	return f(ctx, ref)
}

// receiptSource is the subset of ethclient.Client used by EthereumVerifier
type receiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthereumVerifier looks up transaction receipts over JSON-RPC
type EthereumVerifier struct {
	client        receiptSource
	closer        func()
	confirmations uint64
}

// DialEthereum connects to an Ethereum JSON-RPC endpoint. A transaction is
// confirmed once its block has the given number of confirmations, counting
// the block itself.
func DialEthereum(
	ctx context.Context,
	rpcURL string,
	confirmations uint64,
) (*EthereumVerifier, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &EthereumVerifier{
		client:        client,
		closer:        client.Close,
		confirmations: confirmations,
	}, nil
}

func (v *EthereumVerifier) Verify(
	ctx context.Context,
	txReference string,
) (Status, error) {
	hash, err := parseHash(txReference)
	if err != nil {
		return StatusPending, err
	}
	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return StatusPending, nil
		}
		return StatusPending, fmt.Errorf("get receipt %s: %w", hash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return StatusReverted, nil
	}
	if v.confirmations > 1 && receipt.BlockNumber != nil {
		head, err := v.client.BlockNumber(ctx)
		if err != nil {
			return StatusPending, fmt.Errorf("get block number: %w", err)
		}
		mined := receipt.BlockNumber.Uint64()
		if head < mined || head-mined+1 < v.confirmations {
			return StatusPending, nil
		}
	}
	return StatusConfirmed, nil
}

// Close releases the RPC connection
func (v *EthereumVerifier) Close() {
	if v.closer != nil {
		v.closer()
	}
}

func parseHash(ref string) (common.Hash, error) {
	raw, err := hexutil.Decode(ref)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrInvalidReference, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidReference,
			common.HashLength,
			len(raw),
		)
	}
	return common.BytesToHash(raw), nil
}
