package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/appperms/internal/permgroup"
	"github.com/kazz187/appperms/internal/tracker"
)

func TestRenderSnapshot(t *testing.T) {
	snap := &tracker.Snapshot{
		PackageName: "com.example.app",
		AppLabel:    "Example",
		VersionCode: 2,
		Groups: []tracker.GroupView{
			{
				Name:        "android.permission-group.CAMERA",
				Label:       "Camera",
				Description: "take pictures and record video",
				Permissions: []permgroup.Member{{Name: "android.permission.CAMERA", Granted: true}},
				Granted:     true,
			},
		},
	}
	want := "com.example.app (Example) version 2\n" +
		"  [x] Camera (android.permission-group.CAMERA)\n" +
		"      take pictures and record video\n" +
		"      - android.permission.CAMERA: granted\n"
	assert.Equal(t, want, renderSnapshot(snap))

	empty := &tracker.Snapshot{PackageName: "com.example.app", AppLabel: "Example", Stale: true}
	assert.Equal(t, "com.example.app (Example) version 0 [stale: package no longer installed]\n  no permission groups\n", renderSnapshot(empty))
}

func TestUnifiedDiff(t *testing.T) {
	diff, err := unifiedDiff("a\nb\n", "a\nc\n")
	require.NoError(t, err)
	assert.Contains(t, diff, "-b\n")
	assert.Contains(t, diff, "+c\n")

	diff, err = unifiedDiff("same\n", "same\n")
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestPrintDiff(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	printDiff(&buf, "--- before\n+++ after\n@@ -1 +1 @@\n-b\n+c\n")
	assert.Equal(t, "--- before\n+++ after\n@@ -1 +1 @@\n-b\n+c\n", buf.String())
}
