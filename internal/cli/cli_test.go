// Package cli tests cover the pure helpers of the command layer; pipeline
// behavior is exercised end to end in the pipeline package.
package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/model"
)

// TestRootCommandRegistersSubcommands pins the CLI surface: every stage has
// a standalone subcommand next to the full build.
func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"build", "compile", "merge", "icon", "pack", "verify"} {
		assert.Contains(t, names, want)
	}
}

func TestApplyArchsFlag(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		want    []model.Arch
		wantErr bool
	}{
		{
			name: "empty flag keeps configured set",
			flag: "",
			want: []model.Arch{model.ArchX8664},
		},
		{
			name: "explicit pair",
			flag: "x86_64,arm64",
			want: []model.Arch{model.ArchX8664, model.ArchARM64},
		},
		{
			name: "aliases are normalized",
			flag: "amd64,aarch64",
			want: []model.Arch{model.ArchX8664, model.ArchARM64},
		},
		{
			name:    "unknown architecture rejected",
			flag:    "riscv64",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Archs = []model.Arch{model.ArchX8664}

			err := applyArchsFlag(&cfg, tt.flag)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Archs)
		})
	}
}

// TestCollectArtifactsMissingBundle verifies that merge refuses to run
// without a prior compile, pointing the operator at the right subcommand.
func TestCollectArtifactsMissingBundle(t *testing.T) {
	cfg := config.Defaults()
	cfg.AppName = "Tracker"
	cfg.WorkDir = filepath.Join(t.TempDir(), "build")
	cfg.Archs = []model.Arch{model.ArchX8664, model.ArchARM64}

	_, err := collectArtifacts(cfg)
	require.Error(t, err)

	se := model.AsStageError(err)
	require.NotNil(t, se)
	assert.Equal(t, model.MergeError, se.Kind)
	assert.Contains(t, se.Hint, "compile")
}
