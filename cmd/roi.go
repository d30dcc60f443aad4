package cmd

import (
	"github.com/spf13/cobra"

	"invertix/internal/apply"
)

var roiFlags applyFlags

var roiCmd = &cobra.Command{
	Use:   "invert-roi",
	Short: "Push ROI masks back through an inverted registration chain",
	Long: `Apply the labelmap inverse transforms to one region-of-interest mask or
a directory of masks. ROI masks ride the same nearest-neighbour chain as
labelmaps; the difference is the handoff: the final stage directory of
each mask is printed so a downstream cropping step can pick it up.

Example:
  invertix invert-roi -c inverted/invert.yaml -i roi_mask.nrrd -o warped_rois/`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runApply("invert-roi", apply.VariantROI, roiFlags)
	},
}

func init() {
	rootCmd.AddCommand(roiCmd)
	registerApplyFlags(roiCmd, &roiFlags)
}
