package orders

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"storefront-service/internal/domain"
)

var csvHeader = []string{
	"Order ID", "Customer Name", "Phone", "Address", "City", "State", "Pincode",
	"Total Amount", "Payment Status", "Order Status", "Date", "Items",
}

// ExportCSV writes a header line and one row per order. Every data cell is
// double-quoted, dates are dd/mm/yyyy and items read "name xQ; name xQ".
func ExportCSV(w io.Writer, orders []domain.Order) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(csvHeader, ","))
	bw.WriteByte('\n')
	for _, o := range orders {
		items := make([]string, len(o.Items))
		for i, it := range o.Items {
			items[i] = fmt.Sprintf("%s x%d", it.ProductName, it.Quantity)
		}
		a := o.ShippingAddress
		writeRow(bw, []string{
			o.Number(),
			a.FullName,
			a.Phone,
			a.Address,
			a.City,
			a.State,
			a.Pincode,
			o.TotalAmount.String(),
			string(o.PaymentStatus),
			string(o.OrderStatus),
			o.CreatedAt.Format("02/01/2006"),
			strings.Join(items, "; "),
		})
	}
	return bw.Flush()
}

var quoteEscaper = strings.NewReplacer(`"`, `""`)

func writeRow(w *bufio.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(quoteEscaper.Replace(c))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
