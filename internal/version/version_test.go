// Copyright 2025 Blink Labs Software
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

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, version, commit string) {
	t.Helper()
	origVersion, origCommit := Version, CommitHash
	t.Cleanup(func() {
		Version, CommitHash = origVersion, origCommit
	})
	Version, CommitHash = version, commit
}

func TestGetVersionString(t *testing.T) {
	withBuildInfo(t, "v1.2.3", "abc123")
	assert.Equal(t, "v1.2.3 (commit abc123)", GetVersionString())

	withBuildInfo(t, "v1.2.3", "")
	assert.Equal(t, "v1.2.3", GetVersionString())
}

func TestGetVersionStringFallback(t *testing.T) {
	withBuildInfo(t, "", "")
	assert.NotEmpty(t, GetVersionString())

	withBuildInfo(t, "", "abc123")
	assert.Contains(t, GetVersionString(), "(commit abc123)")
}
