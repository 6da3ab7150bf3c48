package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		version, target string
		greater, gte    bool
	}{
		{"0.3.0", "0.2.9", true, true},
		{"0.3.0", "0.3.0", false, true},
		{"0.2.10", "0.3.0", false, false},
		{"1.0.0", "0.99.0", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.version+" vs "+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.greater, IsVersionGreaterThan(tt.version, tt.target))
			assert.Equal(t, tt.gte, IsVersionGreaterOrEqualThan(tt.version, tt.target))
		})
	}
}

func TestSorted(t *testing.T) {
	in := []string{"0.10.0", "0.2.0", "0.1.1", "0.1.0"}
	assert.Equal(t, []string{"0.1.0", "0.1.1", "0.2.0", "0.10.0"}, Sorted(in))
	assert.Equal(t, "0.10.0", in[0])
}

func TestLatest(t *testing.T) {
	assert.Equal(t, "0.10.0", Latest([]string{"0.2.0", "0.10.0", "0.9.1"}))
	assert.Equal(t, "", Latest(nil))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("0.3.0"))
	assert.True(t, IsValid("v0.3.0"))
	assert.False(t, IsValid("latest"))
}

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}

func TestString(t *testing.T) {
	old := GitCommit
	defer func() { GitCommit = old }()

	GitCommit = "unknown"
	assert.Equal(t, Version, String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, Version+"-01234567", String())
	assert.Contains(t, StringFull(), "Version="+Version+"-01234567")
}
