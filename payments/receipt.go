package payments

import (
	"bytes"
	"fmt"

	"scatch/cart"
	"scatch/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

func money(currency string, minor int64) string {
	return currency + " " + cart.FromMinor(minor).StringFixed(2)
}

// RenderReceipt draws a one-page PDF receipt. The QR code carries gatewayOrderId|paymentId
// so support staff can look the payment up at the gateway.
func RenderReceipt(order *models.Order) ([]byte, error) {
	qrPNG, err := qrcode.Encode(order.RazorpayOrderID+"|"+order.PaymentID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Payment Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Receipt: %s", order.Receipt))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Order ID: %s", order.RazorpayOrderID))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Payment ID: %s", order.PaymentID))
	pdf.Ln(8)
	if order.PaidAt != nil {
		pdf.Cell(0, 10, fmt.Sprintf("Paid at: %s", order.PaidAt.UTC().Format("02 Jan 2006 15:04 MST")))
		pdf.Ln(12)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(90, 8, "Item", "1", 0, "", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 8, "Price", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, it := range order.Items {
		pdf.CellFormat(90, 8, it.Product.Hex(), "1", 0, "", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprintf("%d", it.Qty), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 8, money(order.Currency, it.Price), "1", 1, "R", false, 0, "")
	}
	pdf.CellFormat(110, 8, "Platform fee", "1", 0, "", false, 0, "")
	pdf.CellFormat(40, 8, money(order.Currency, order.PlatformFee), "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(110, 8, "Total", "1", 0, "", false, 0, "")
	pdf.CellFormat(40, 8, money(order.Currency, order.Amount), "1", 1, "R", false, 0, "")

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 20, 35, 35, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}
