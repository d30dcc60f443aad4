package cmd

import (
	"github.com/spf13/cobra"

	"invertix/internal/apply"
)

var meshFlags applyFlags

var meshCmd = &cobra.Command{
	Use:   "invert-mesh",
	Short: "Push mesh point sets back through a registration chain",
	Long: `Apply a registration chain to one mesh or a directory of meshes. The
transformation engine pushes points through a transform in the opposite
direction to volumes, so mesh chains read the forward transform tree
that sits next to the inverted one; no inverse transforms are involved.

A mesh stage that fails aborts the whole run: a partially warped point
set has no valid interpretation.

Example:
  invertix invert-mesh -c inverted/invert.yaml -i surface.vtk -o warped_meshes/`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runApply("invert-mesh", apply.VariantMesh, meshFlags)
	},
}

func init() {
	rootCmd.AddCommand(meshCmd)
	registerApplyFlags(meshCmd, &meshFlags)
}
