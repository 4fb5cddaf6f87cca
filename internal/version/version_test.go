// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_String(t *testing.T) {
	info := Info{
		Version:   "v1.0.0",
		GitCommit: "abc1234",
		BuildTime: "2025-01-30T12:00:00Z",
	}

	assert.Equal(t, "osites v1.0.0 (commit: abc1234, built: 2025-01-30T12:00:00Z)", info.String())
	assert.Equal(t, "osites/v1.0.0", info.UserAgent())
}

func TestInfo_ZeroValue(t *testing.T) {
	var info Info

	assert.Equal(t, "osites dev (commit: unknown, built: unknown)", info.String())
	assert.Equal(t, "osites/dev", info.UserAgent())
}
