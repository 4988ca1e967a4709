package orders

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
)

const exportSheet = "Orders"

var exportHeader = []string{
	"Order ID", "Created At", "Customer ID", "Recipient", "Phone",
	"Payment Method", "Order Status", "Payment Status", "Items", "Total (VND)",
}

// ExportXLSX renders the filtered order list as a spreadsheet for back-office
// reporting.
func (s *service) ExportXLSX(ctx context.Context, filters Filters) ([]byte, error) {
	entries, err := s.repo.ListForExport(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for export")
	}

	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	index, err := file.NewSheet(exportSheet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create export sheet")
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "drop default sheet")
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve header cell")
		}
		if err := file.SetCellValue(exportSheet, cell, title); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write header cell")
		}
	}

	for row, order := range entries {
		values := []any{
			order.ID.String(),
			order.CreatedAt.Format("2006-01-02 15:04:05"),
			customerLabel(order),
			order.ShippingName,
			order.ShippingPhone,
			order.PaymentMethod.String(),
			order.OrderStatus.String(),
			order.PaymentStatus.String(),
			itemCount(order),
			order.TotalAmount,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve data cell")
			}
			if err := file.SetCellValue(exportSheet, cell, value); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write data cell")
			}
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "serialize export")
	}
	return buf.Bytes(), nil
}

func customerLabel(order models.Order) string {
	if order.CustomerID == nil {
		return "guest"
	}
	return order.CustomerID.String()
}

func itemCount(order models.Order) string {
	units := 0
	for _, item := range order.Items {
		units += item.Quantity
	}
	return fmt.Sprintf("%d lines / %d units", len(order.Items), units)
}
