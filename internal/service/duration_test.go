package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestResolveDuration(t *testing.T) {
	tests := []struct {
		name          string
		explicit      *int
		projectCustom *int
		want          int
		wantErrCode   string
	}{
		{name: "global default", want: 120},
		{name: "project custom wins over default", projectCustom: intPtr(45), want: 45},
		{name: "explicit wins over project custom", explicit: intPtr(25), projectCustom: intPtr(45), want: 25},
		{name: "minimum accepted", explicit: intPtr(5), want: 5},
		{name: "maximum accepted", explicit: intPtr(480), want: 480},
		{name: "below minimum rejected", explicit: intPtr(4), wantErrCode: "invalid_duration"},
		{name: "above maximum rejected", explicit: intPtr(481), wantErrCode: "invalid_duration"},
		{name: "invalid project custom rejected", projectCustom: intPtr(481), wantErrCode: "invalid_duration"},
		{name: "zero explicit rejected", explicit: intPtr(0), wantErrCode: "invalid_duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, apiErr := ResolveDuration(tt.explicit, tt.projectCustom)
			if tt.wantErrCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantErrCode, apiErr.Code)
				return
			}
			require.Nil(t, apiErr)
			assert.Equal(t, tt.want, got)
		})
	}
}
