package cmd

import (
	"github.com/spf13/cobra"

	"invertix/internal/apply"
)

var imageFlags applyFlags

var imageCmd = &cobra.Command{
	Use:   "invert-image-volume",
	Short: "Push grey-value image volumes back through an inverted registration chain",
	Long: `Apply the image inverse transforms to one volume or a directory of
volumes, walking every stage of the inversion order. Image chains keep
the smooth interpolation of the source registration, so intensities are
resampled rather than snapped.

A volume that fails partway leaves its chain unfinished but does not
stop the other volumes in the batch.

Example:
  invertix invert-image-volume -c inverted/invert.yaml -i stats_overlay.nrrd -o warped/`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runApply("invert-image-volume", apply.VariantImage, imageFlags)
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
	registerApplyFlags(imageCmd, &imageFlags)
}
