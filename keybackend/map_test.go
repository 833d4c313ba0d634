package keybackend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate/keybackend"
)

func TestMapKeyStore_Lookup(t *testing.T) {
	tests := []struct {
		name    string
		keys    map[string]string
		kid     string
		want    []byte
		wantErr error
	}{
		{
			name: "returns secret when kid exists",
			keys: map[string]string{
				"2026-10": "current",
				"2026-04": "previous",
			},
			kid:  "2026-04",
			want: []byte("previous"),
		},
		{
			name:    "returns ErrKeyNotFound when kid does not exist",
			keys:    map[string]string{"2026-10": "current"},
			kid:     "2025-10",
			wantErr: keybackend.ErrKeyNotFound,
		},
		{
			name:    "returns ErrKeyNotFound for nil store",
			keys:    nil,
			kid:     "any",
			wantErr: keybackend.ErrKeyNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := keybackend.NewMapKeyStore(tt.keys)
			got, err := store.Lookup(tt.kid)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapKeyStore_Len(t *testing.T) {
	assert.Equal(t, 0, keybackend.NewMapKeyStore(nil).Len())
	assert.Equal(t, 2, keybackend.NewMapKeyStore(map[string]string{"a": "1", "b": "2"}).Len())
}
