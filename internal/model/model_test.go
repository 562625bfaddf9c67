package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCanGenerate(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleAdmin, true},
		{RoleManagement, true},
		{RoleOperator, true},
		{RoleViewer, false},
		{Role("owner"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.role.CanGenerate(), "role %q", tt.role)
	}
}

func TestValidateMessage(t *testing.T) {
	require.NoError(t, ValidateMessage("how do I start?"))
	require.Error(t, ValidateMessage(""))

	long := strings.Repeat("a", MaxMessageLen+1)
	err := ValidateMessage(long)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum length")

	require.NoError(t, ValidateMessage(strings.Repeat("a", MaxMessageLen)))
}

func TestValidatePrompt(t *testing.T) {
	require.NoError(t, ValidatePrompt("draft safety policy intro"))
	require.Error(t, ValidatePrompt(""))
	require.Error(t, ValidatePrompt(strings.Repeat("x", MaxPromptLen+1)))
}

func TestValidateIdentifier(t *testing.T) {
	require.NoError(t, ValidateIdentifier("section_id", "sec-1"))

	err := ValidateIdentifier("section_id", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section_id")

	require.Error(t, ValidateIdentifier("section_id", strings.Repeat("s", MaxIdentifierLen+1)))
}

func TestClampItemCount(t *testing.T) {
	assert.Equal(t, 5, ClampItemCount(0, 5), "omitted count uses default")
	assert.Equal(t, 5, ClampItemCount(-3, 5))
	assert.Equal(t, 10, ClampItemCount(10, 5))
	assert.Equal(t, MaxItemCount, ClampItemCount(1000, 5))
}

func TestSectionHasContent(t *testing.T) {
	empty := ""
	filled := "Wear gloves when handling solvents."

	assert.False(t, Section{ID: "a"}.HasContent())
	assert.False(t, Section{ID: "a", Content: &empty}.HasContent())
	assert.True(t, Section{ID: "a", Content: &filled}.HasContent())
}

func TestTokenUsageTotal(t *testing.T) {
	u := TokenUsage{PromptTokens: 120, CompletionTokens: 48}
	assert.Equal(t, 168, u.Total())
}
