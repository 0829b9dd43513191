package exporter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"integer value", 110, "110"},
		{"fraction keeps every digit", 102.5, "102.5"},
		{"long mean stays decimal", 100.66666666666667, "100.66666666666667"},
		{"negative", -3.25, "-3.25"},
		{"zero", 0, "0"},
		{"nan renders empty", math.NaN(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.input))
		})
	}
}

func TestFormatBool(t *testing.T) {
	assert.Equal(t, "true", formatBool(true))
	assert.Equal(t, "false", formatBool(false))
}
