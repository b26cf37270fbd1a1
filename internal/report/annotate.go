package report

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	compliantColor    = color.RGBA{G: 255, A: 255}
	nonCompliantColor = color.RGBA{R: 255, A: 255}
	labelTextColor    = color.RGBA{A: 255}
	labelBackColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotate draws door boxes and width labels onto a copy of the page:
// green for compliant, red for non-compliant, plus a legend. The input
// page is not modified.
func Annotate(page gocv.Mat, records []Record, minWidthMM float64) gocv.Mat {
	var visual gocv.Mat
	if page.Channels() == 1 {
		visual = gocv.NewMat()
		gocv.CvtColor(page, &visual, gocv.ColorGrayToBGR)
	} else {
		visual = page.Clone()
	}

	for _, r := range records {
		boxColor := nonCompliantColor
		if r.Compliant {
			boxColor = compliantColor
		}
		gocv.Rectangle(&visual, r.Box.ToImageRect(), boxColor, 2)

		label := fmt.Sprintf("%.0fmm", r.WidthMM)
		textX := r.Box.X
		textY := r.Box.Y - 10
		if r.Box.Y <= 20 {
			textY = r.Box.Y + 30
		}

		size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
		gocv.Rectangle(&visual,
			image.Rect(textX, textY-size.Y, textX+size.X, textY+5),
			labelBackColor, -1)
		gocv.PutText(&visual, label, image.Pt(textX, textY),
			gocv.FontHersheySimplex, 0.5, labelTextColor, 1)
	}

	gocv.PutText(&visual, fmt.Sprintf("Min width: %.0fmm", minWidthMM),
		image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, labelTextColor, 2)
	gocv.PutText(&visual, "Compliant", image.Pt(10, 60),
		gocv.FontHersheySimplex, 0.7, compliantColor, 2)
	gocv.PutText(&visual, "Non-compliant", image.Pt(10, 90),
		gocv.FontHersheySimplex, 0.7, nonCompliantColor, 2)

	return visual
}

// WriteAnnotated renders and saves the annotated page image.
func WriteAnnotated(path string, page gocv.Mat, records []Record, minWidthMM float64) error {
	visual := Annotate(page, records, minWidthMM)
	defer visual.Close()

	if ok := gocv.IMWrite(path, visual); !ok {
		return fmt.Errorf("failed to write annotated image %s", path)
	}
	return nil
}
