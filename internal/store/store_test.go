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

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/stride/internal/config"
)

func TestOpen_Memory(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{Storage: config.StorageConfig{Driver: config.DriverMemory}})
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.DB)
	assert.NotNil(t, b.Users)
	assert.NotNil(t, b.Tokens)
	assert.NotNil(t, b.Resets)
	assert.NotNil(t, b.Cascade)
	assert.NotNil(t, b.Workspace.Pins)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Storage: config.StorageConfig{Driver: "sqlite"}})
	assert.Error(t, err)
}
