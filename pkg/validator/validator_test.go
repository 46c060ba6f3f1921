package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/appperms/pkg/cerr"
)

type manifest struct {
	PackageName string `yaml:"package_name" validate:"required,package_name"`
	Level       string `yaml:"protection_level" validate:"protection_level"`
	VersionCode int64  `yaml:"version_code" validate:"gte=0"`
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		input   manifest
		details []string
	}{
		{
			name:  "valid",
			input: manifest{PackageName: "com.example.app", Level: "dangerous"},
		},
		{
			name:  "empty protection level is allowed",
			input: manifest{PackageName: "com.example.app"},
		},
		{
			name:    "missing package name",
			input:   manifest{},
			details: []string{"package_name: is required"},
		},
		{
			name:    "single segment package name",
			input:   manifest{PackageName: "example"},
			details: []string{`package_name: "example" is not a valid package name`},
		},
		{
			name:    "segment starting with digit",
			input:   manifest{PackageName: "com.1example"},
			details: []string{`package_name: "com.1example" is not a valid package name`},
		},
		{
			name:  "multiple failures",
			input: manifest{PackageName: "com.example", Level: "system", VersionCode: -1},
			details: []string{
				"protection_level: must be one of normal, dangerous, signature",
				"version_code: must be at least 0",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate("manifest", &tt.input)
			if tt.details == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

			var cErr *cerr.Error
			require.True(t, errors.As(err, &cErr))
			assert.Equal(t, "invalid manifest", cErr.Msg)
			assert.Equal(t, tt.details, cErr.DetailMessages())
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := New()
	assert.True(t, v.Var("android.permission", "package_name"))
	assert.False(t, v.Var("android", "package_name"))
	assert.True(t, v.Var("signature", "protection_level"))
	assert.False(t, v.Var("privileged", "protection_level"))
}
