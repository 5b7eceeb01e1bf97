package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"dealwatcher/internal/analysis"
)

var (
	classifyPrice    float64
	classifyDiscount float64
	classifyOriginal float64
	classifyRating   float64
	classifyReviews  int
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "按当前规则对单个价格打分",
	RunE: func(cmd *cobra.Command, args []string) error {
		if classifyPrice <= 0 {
			return errors.New("--price 必须大于 0")
		}

		in := analysis.ClassifierInput{
			PromoPrice:      classifyPrice,
			DiscountPercent: classifyDiscount,
		}
		if cmd.Flags().Changed("original") {
			in.DiscountPercent = analysis.DiscountPercent(classifyPrice, classifyOriginal)
		}
		if cmd.Flags().Changed("rating") {
			in.Rating = &classifyRating
		}
		if cmd.Flags().Changed("reviews") {
			in.ReviewCount = &classifyReviews
		}

		return getApp().Classify(cmd.Context(), in)
	},
}

func init() {
	classifyCmd.Flags().Float64Var(&classifyPrice, "price", 0, "促销价")
	classifyCmd.Flags().Float64Var(&classifyDiscount, "discount", 0, "折扣百分比")
	classifyCmd.Flags().Float64Var(&classifyOriginal, "original", 0, "原价 (提供时覆盖 --discount)")
	classifyCmd.Flags().Float64Var(&classifyRating, "rating", 0, "评分")
	classifyCmd.Flags().IntVar(&classifyReviews, "reviews", 0, "评论数")
}
