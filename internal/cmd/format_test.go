package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormat_Set(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		want    OutputFormat
		wantErr bool
	}{
		{name: "json", value: "json", want: FormatJSON},
		{name: "yaml with padding", value: "  YAML ", want: FormatYAML},
		{name: "text", value: "text", want: FormatText},
		{name: "unknown", value: "xml", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var f OutputFormat
			err := f.Set(tc.value)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, f)
		})
	}
}

func TestAllowedOutputFormats_Sorted(t *testing.T) {
	t.Parallel()

	formats := AllowedOutputFormats()
	assert.Equal(t, OutputFormats{FormatJSON, FormatText, FormatYAML}, formats)
}
