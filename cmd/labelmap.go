package cmd

import (
	"github.com/spf13/cobra"

	"invertix/internal/apply"
)

var labelmapFlags applyFlags

var labelmapCmd = &cobra.Command{
	Use:   "invert-labelmap",
	Short: "Push labelmaps back through an inverted registration chain",
	Long: `Apply the labelmap inverse transforms to one labelmap or a directory of
labelmaps, walking every stage of the inversion order. Labelmaps resample
with nearest-neighbour interpolation so label values survive the trip.

Example:
  invertix invert-labelmap -c inverted/invert.yaml -i atlas_labels.nrrd -o warped_labels/`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runApply("invert-labelmap", apply.VariantLabelmap, labelmapFlags)
	},
}

func init() {
	rootCmd.AddCommand(labelmapCmd)
	registerApplyFlags(labelmapCmd, &labelmapFlags)
}
