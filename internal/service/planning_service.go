package service

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/reorder"
	"github.com/andresuchdata/stockrecon/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const planSheet = "Reorder Plan"

var planHeaders = []string{
	"SKU", "Name", "Stock On Hand", "Sales Per Day", "Safety Stock",
	"Reorder Point", "Quantity To Order", "Days Of Stock",
}

// PlanningService decides whether new orders should be raised. It reads
// products and never touches stock.
type PlanningService struct {
	products repository.ProductRepository
	validate *validator.Validate
}

func NewPlanningService(products repository.ProductRepository) *PlanningService {
	return &PlanningService{
		products: products,
		validate: validator.New(),
	}
}

// Suggestions runs the reorder calculator over every product, most urgent
// first. With dueOnly it keeps products with a positive quantity to order.
func (s *PlanningService) Suggestions(ctx context.Context, dueOnly bool) ([]domain.ReorderSuggestion, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	suggestions := make([]domain.ReorderSuggestion, 0, len(products))
	for _, p := range products {
		sg := suggest(p)
		if dueOnly && sg.QuantityToOrder == 0 {
			continue
		}
		suggestions = append(suggestions, sg)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].DaysOfStock != suggestions[j].DaysOfStock {
			return suggestions[i].DaysOfStock < suggestions[j].DaysOfStock
		}
		return suggestions[i].SKU < suggestions[j].SKU
	})

	return suggestions, nil
}

// Suggestion computes the reorder figures of a single product.
func (s *PlanningService) Suggestion(ctx context.Context, sku string) (*domain.ReorderSuggestion, error) {
	p, err := s.products.GetProduct(ctx, sku)
	if err != nil {
		return nil, err
	}
	sg := suggest(p)
	return &sg, nil
}

// UpdatePlanningParams validates and stores a planning edit.
func (s *PlanningService) UpdatePlanningParams(ctx context.Context, sku string, params domain.PlanningParams) (*domain.Product, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	p, err := s.products.UpdatePlanningParams(ctx, sku, params)
	if err != nil {
		return nil, err
	}

	log.Info().Str("sku", p.SKU).Msg("planning: parameters updated")
	return p, nil
}

// ExportSuggestions writes the plan as an xlsx workbook to w.
func (s *PlanningService) ExportSuggestions(ctx context.Context, w io.Writer, dueOnly bool) error {
	suggestions, err := s.Suggestions(ctx, dueOnly)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", planSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, header := range planHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(planSheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, sg := range suggestions {
		row := []interface{}{
			sg.SKU, sg.Name, sg.StockOnHand, sg.SalesPerDay, sg.SafetyStock,
			sg.ReorderPoint, sg.QuantityToOrder, sg.DaysOfStock,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(planSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for sku %s: %w", sg.SKU, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func suggest(p *domain.Product) domain.ReorderSuggestion {
	m := reorder.Calculate(*p)
	return domain.ReorderSuggestion{
		SKU:             p.SKU,
		Name:            p.Name,
		StockOnHand:     p.StockOnHand,
		SalesPerDay:     reorder.RoundRate(p.SalesPerDay),
		SafetyStock:     m.SafetyStock,
		ReorderPoint:    m.ReorderPoint,
		QuantityToOrder: m.QuantityToOrder,
		DaysOfStock:     m.DaysOfStock,
	}
}
