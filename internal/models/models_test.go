package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayNullStaysNil(t *testing.T) {
	v, err := StringArray(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var a StringArray
	require.NoError(t, a.Scan(nil))
	assert.Nil(t, a)

	require.NoError(t, a.Scan([]byte("null")))
	assert.Nil(t, a)
}

func TestStringArrayToleratesLegacyValues(t *testing.T) {
	var a StringArray
	require.NoError(t, a.Scan(`["best protein milk","fairlife review"]`))
	assert.Equal(t, StringArray{"best protein milk", "fairlife review"}, a)

	require.NoError(t, a.Scan(`"chatgpt"`))
	assert.Equal(t, StringArray{"chatgpt"}, a)

	require.NoError(t, a.Scan("grok"))
	assert.Equal(t, StringArray{"grok"}, a)

	assert.Error(t, a.Scan(42))
}

func TestCitationsScanBareURLList(t *testing.T) {
	var c Citations
	require.NoError(t, c.Scan([]byte(`["https://a.example/x","https://b.example/y"]`)))
	assert.Equal(t, Citations{{URL: "https://a.example/x"}, {URL: "https://b.example/y"}}, c)

	require.NoError(t, c.Scan(`[{"url":"https://a.example","title":"A","snippet":"s"}]`))
	assert.Equal(t, Citations{{URL: "https://a.example", Title: "A", Snippet: "s"}}, c)

	assert.Error(t, c.Scan(`{"url":1}`))
}

func TestPromptTargets(t *testing.T) {
	p := &PromptModel{}
	assert.True(t, p.Targets("claude"))

	p.SelectedProviders = StringArray{"ChatGPT", " grok "}
	assert.True(t, p.Targets("chatgpt"))
	assert.True(t, p.Targets("grok"))
	assert.False(t, p.Targets("claude"))
}

func TestPromptCategoryValid(t *testing.T) {
	assert.True(t, CategoryProblemSolution.Valid())
	assert.False(t, PromptCategory("news").Valid())
}
