package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	assert.False(t, Text("").IsSet())
	assert.False(t, Text("   ").IsSet())

	v, ok := Text("  State Farm ").Get()
	assert.True(t, ok)
	assert.Equal(t, "State Farm", v)
}

func TestOpt_OrElse(t *testing.T) {
	assert.Equal(t, "fallback", None[string]().OrElse("fallback"))
	assert.Equal(t, "value", Some("value").OrElse("fallback"))
}

func TestExtractedFields_JSONOmitsAbsent(t *testing.T) {
	f := ExtractedFields{
		FirstName: Some("John"),
		LastName:  Some("Smith"),
	}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"firstName":"John","lastName":"Smith"}`, string(data))

	var back ExtractedFields
	require.NoError(t, json.Unmarshal([]byte(`{"firstName":"Ann","address":null}`), &back))
	assert.Equal(t, "Ann", back.FirstName.OrElse(""))
	assert.False(t, back.Address.IsSet())
}

func TestExtractedFields_HasName(t *testing.T) {
	assert.False(t, ExtractedFields{Address: Some("1 Main St")}.HasName())
	assert.True(t, ExtractedFields{FirstName: Some("John")}.HasName())
	assert.True(t, ExtractedFields{LastName: Some("Smith")}.HasName())
}

func TestStage_Valid(t *testing.T) {
	for _, s := range Stages {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Stage("Archived").Valid())
	assert.Equal(t, StageNew, Stages[0])
}
