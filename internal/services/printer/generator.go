package printer

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/xelth-com/sharpcrmgo/internal/models"
	"github.com/xelth-com/sharpcrmgo/internal/utils"
)

// TrayLabelPDF renders a single A6 label for a physical tray: the tray
// number large, the owning service file, and a QR code scannable at the
// bench. Unnumbered trays are labelled by their row id.
func TrayLabelPDF(tray *models.Tray) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A6", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// A6 landscape
	pageWidth, pageHeight := 148.0, 105.0

	display := tray.Number
	if display == "" {
		display = fmt.Sprintf("T%d", tray.ID)
	}

	qrContent := utils.EncodeTrayCode(tray.ID, display)
	qrPng, err := qrcode.Encode(qrContent, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}

	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	_ = pdf.RegisterImageOptionsReader("qr", imgOptions, bytes.NewReader(qrPng))

	qrSize := pageHeight * 0.6
	pdf.ImageOptions("qr", pageWidth-qrSize-8, (pageHeight-qrSize)/2, qrSize, qrSize, false, imgOptions, 0, "")

	pdf.SetFont("Arial", "B", 36)
	pdf.SetXY(8, 16)
	pdf.CellFormat(pageWidth-qrSize-20, 16, display, "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	pdf.SetXY(8, 40)
	if tray.ServiceFileID != nil {
		pdf.CellFormat(pageWidth-qrSize-20, 8, fmt.Sprintf("Service file #%d", *tray.ServiceFileID), "", 0, "L", false, 0, "")
	} else {
		pdf.CellFormat(pageWidth-qrSize-20, 8, "Released", "", 0, "L", false, 0, "")
	}

	if tray.SizeTag != "" {
		pdf.SetXY(8, 50)
		pdf.CellFormat(pageWidth-qrSize-20, 8, fmt.Sprintf("Size: %s", tray.SizeTag), "", 0, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
