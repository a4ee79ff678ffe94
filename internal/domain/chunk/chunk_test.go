package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c, err := New(Params{
		DocumentName: "report.pdf", RelativePath: "2023/report.pdf",
		Language: " EN ", PageNumber: 3, TextNumber: 7, Text: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf:3:7", c.ID())
	assert.Equal(t, "en", c.Language())
	assert.Nil(t, c.Vector())

	v := c.WithVector([]float32{1, 2})
	assert.Equal(t, []float32{1, 2}, v.Vector())
	assert.Nil(t, c.Vector())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"no document", Params{Text: "x"}},
		{"no text", Params{DocumentName: "a", Text: "  "}},
		{"negative page", Params{DocumentName: "a", Text: "x", PageNumber: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.p)
			assert.Error(t, err)
		})
	}
}
