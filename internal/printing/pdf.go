package printing

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/pack"
)

const (
	labelsPerRow    = 3
	labelColumnSize = 12 / labelsPerRow
	labelNameMax    = 15
)

// LabelsPDF lays out count QR labels for item, three per row.
func LabelsPDF(item domain.Item, count int) ([]byte, error) {
	if count < 1 {
		return nil, fmt.Errorf("label count must be positive: %w", domain.ErrInvalidQuantity)
	}

	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	price := Amount("Rs.", item.SellingPrice)
	packInfo := ""
	if pack.IsPack(item.PiecesPerBox) {
		packInfo = fmt.Sprintf("Pack of %d", item.PiecesPerBox)
	}
	name := labelName(item.Name)

	for start := 0; start < count; start += labelsPerRow {
		n := count - start
		if n > labelsPerRow {
			n = labelsPerRow
		}
		qr := make([]core.Col, 0, labelsPerRow)
		codes := make([]core.Col, 0, labelsPerRow)
		prices := make([]core.Col, 0, labelsPerRow)
		infos := make([]core.Col, 0, labelsPerRow)
		names := make([]core.Col, 0, labelsPerRow)
		for i := 0; i < labelsPerRow; i++ {
			if i >= n {
				for _, cols := range []*[]core.Col{&qr, &codes, &prices, &infos, &names} {
					*cols = append(*cols, col.New(labelColumnSize))
				}
				continue
			}
			qr = append(qr, code.NewQrCol(labelColumnSize, item.Code, props.Rect{Center: true, Percent: 90}))
			codes = append(codes, text.NewCol(labelColumnSize, item.Code, props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Center}))
			prices = append(prices, text.NewCol(labelColumnSize, price, props.Text{Size: 10, Align: align.Center}))
			infos = append(infos, text.NewCol(labelColumnSize, packInfo, props.Text{Size: 8, Align: align.Center}))
			names = append(names, text.NewCol(labelColumnSize, name, props.Text{Size: 7, Align: align.Center}))
		}
		m.AddRow(28, qr...)
		m.AddRow(5, codes...)
		m.AddRow(5, prices...)
		m.AddRow(4, infos...)
		m.AddRow(4, names...)
		m.AddRow(4)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate labels pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

// ReceiptPDF renders the bill as an A4 invoice for sharing.
func ReceiptPDF(shop Shop, bill domain.Bill) ([]byte, error) {
	v := newReceiptView(shop, bill, "Rs.")

	m := maroto.New(config.NewBuilder().Build())
	m.AddRow(12, text.NewCol(12, v.ShopName, props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Center}))
	if v.Tagline != "" {
		m.AddRow(7, text.NewCol(12, v.Tagline, props.Text{Size: 12, Align: align.Center}))
	}
	if v.Address != "" {
		m.AddRow(6, text.NewCol(12, v.Address, props.Text{Size: 9, Align: align.Center}))
	}
	m.AddRow(10,
		text.NewCol(6, "Date: "+v.Date, props.Text{Size: 9, Top: 3}),
		text.NewCol(6, "Bill #: "+v.Reference, props.Text{Size: 9, Top: 3, Align: align.Right}),
	)
	if v.IsReturn {
		m.AddRow(7, text.NewCol(12, "RETURN", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Center}))
	}
	if v.Customer != "" {
		m.AddRow(6, text.NewCol(12, "Customer: "+v.Customer, props.Text{Size: 9}))
	}

	m.AddRow(8,
		text.NewCol(7, "Item", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range v.Lines {
		m.AddRow(10,
			col.New(7).Add(
				text.New(line.Name, props.Text{Size: 9}),
				text.New(line.Detail, props.Text{Size: 7, Top: 4}),
			),
			text.NewCol(2, fmt.Sprintf("%d", line.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, line.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(7, col.New(7), text.NewCol(2, "Subtotal", props.Text{Size: 9}), text.NewCol(3, v.Subtotal, props.Text{Size: 9, Align: align.Right}))
	if v.HasDiscount {
		m.AddRow(7, col.New(7), text.NewCol(2, "Discount", props.Text{Size: 9}), text.NewCol(3, v.Discount, props.Text{Size: 9, Align: align.Right}))
	}
	m.AddRow(7, col.New(7), text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}), text.NewCol(3, v.Total, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}))
	if v.Pending {
		m.AddRow(7, col.New(7), text.NewCol(2, "Status", props.Text{Size: 9}), text.NewCol(3, "Udhaar", props.Text{Size: 9, Align: align.Right}))
	}
	m.AddRow(15, text.NewCol(12, "Thank You - Visit Again", props.Text{Size: 10, Style: fontstyle.Italic, Align: align.Center, Top: 6}))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate receipt pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func labelName(name string) string {
	runes := []rune(name)
	if len(runes) > labelNameMax {
		return string(runes[:labelNameMax]) + "..."
	}
	return name
}
