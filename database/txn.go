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

package database

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrReadOnlyTxn is returned when a write is attempted through a Reader handle
var ErrReadOnlyTxn = errors.New("write attempted on read-only handle")

// Txn is the handle store code runs its queries on. It is either a real
// database transaction or a plain read handle obtained from Reader.
type Txn struct {
	db       *gorm.DB
	readOnly bool
}

// DB returns the GORM handle scoped to this transaction
func (t *Txn) DB() *gorm.DB {
	return t.db
}

// ReadOnly returns true for handles obtained from Reader
func (t *Txn) ReadOnly() bool {
	return t.readOnly
}

// Writable returns ErrReadOnlyTxn for read handles
func (t *Txn) Writable() error {
	if t.readOnly {
		return ErrReadOnlyTxn
	}
	return nil
}

// Transaction runs fn inside a read-write transaction. Any error returned by
// fn, or a panic, rolls back every write made through the Txn.
func (d *Database) Transaction(
	ctx context.Context,
	fn func(*Txn) error,
) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Txn{db: tx})
	})
}

// IsBusy reports whether err is sqlite lock contention, which is safe to retry
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// IsUniqueViolation reports whether err comes from a unique index
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
