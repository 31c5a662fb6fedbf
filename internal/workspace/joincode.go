// Copyright 2026 The OpenTrusty Authors
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

package workspace

import (
	"errors"

	"github.com/opentrusty/stride/internal/id"
)

const joinCodeAttempts = 5

// WithJoinCode calls create with fresh join codes until it stops failing
// with ErrJoinCodeTaken or the attempts run out.
func WithJoinCode(length int, create func(code string) error) error {
	var err error
	for range joinCodeAttempts {
		code, genErr := id.NewJoinCode(length)
		if genErr != nil {
			return genErr
		}
		if err = create(code); !errors.Is(err, ErrJoinCodeTaken) {
			return err
		}
	}
	return err
}
