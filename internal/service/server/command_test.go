package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configAddr string
		override   string
		want       string
		wantErr    error
	}{
		{name: "override wins", configAddr: "10.0.0.1:50061", override: "127.0.0.1:9000", want: "127.0.0.1:9000"},
		{name: "port from config", configAddr: "alarm.local:50061", want: ":50061"},
		{name: "missing address", wantErr: ErrNoServerAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveListenAddress(tt.configAddr, tt.override)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := resolveListenAddress("no-port", "")
	require.Error(t, err)
}

func TestRun_MissingSettings(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	require.ErrorContains(t, err, "load settings")
}
