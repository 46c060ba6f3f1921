package pkginfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageInfo_IsGranted(t *testing.T) {
	pkg := &PackageInfo{
		PackageName:          "com.example.app",
		RequestedPermissions: []string{"android.permission.CAMERA", "android.permission.READ_CONTACTS"},
		GrantedPermissions:   []string{"android.permission.CAMERA", "android.permission.RECORD_AUDIO"},
	}

	assert.True(t, pkg.IsGranted("android.permission.CAMERA"))
	assert.False(t, pkg.IsGranted("android.permission.READ_CONTACTS"))
	// Granted but never requested does not count.
	assert.False(t, pkg.IsGranted("android.permission.RECORD_AUDIO"))
	assert.True(t, pkg.IsRequested("android.permission.READ_CONTACTS"))
}
