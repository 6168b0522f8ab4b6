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

package governance

import (
	"fmt"
	"strings"
)

// Role is a role claim supplied by the identity provider
type Role string

const (
	RolePrivileged      Role = "participant-with-privilege"
	RoleStakingEligible Role = "staking-eligible"
)

// Caller is the identity attached to an operation. The engine trusts the
// role claim as given.
type Caller struct {
	ID          string
	Role        Role
	DisplayName string
}

// Require returns an Unauthorized error unless the caller is identified and
// holds role
func (c Caller) Require(role Role) error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrMissingCaller
	}
	if c.Role != role {
		return fmt.Errorf("%w: %s required", ErrMissingRole, role)
	}
	return nil
}
