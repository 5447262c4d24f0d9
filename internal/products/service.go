package products

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/export"
	"github.com/grocerops/grocerops/internal/shared"
)

const basePath = "/api/products"

// DefaultPerPage is the page size of the product table.
const DefaultPerPage = 20

// Page is one filtered page of products.
type Page struct {
	Items      []Product
	Pagination shared.Pagination
	Categories []string
	Filter     Filter
}

// Service wraps the backend product endpoints.
type Service struct {
	api      backend.Caller
	validate *validator.Validate
}

// NewService constructs Service.
func NewService(api backend.Caller) *Service {
	v := validator.New()
	v.RegisterStructValidation(validateInput, Input{})
	return &Service{api: api, validate: v}
}

func validateInput(sl validator.StructLevel) {
	in := sl.Current().Interface().(Input)
	if !in.Price.IsPositive() {
		sl.ReportError(in.Price, "Price", "price", "gt", "0")
	}
}

// All returns every product the backend knows about.
func (s *Service) All(ctx context.Context) ([]Product, error) {
	var items []Product
	if err := backend.Get(ctx, s.api, basePath, nil, &items); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return items, nil
}

// List fetches all products and applies the filter and pagination locally.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	items, err := s.All(ctx)
	if err != nil {
		return Page{}, err
	}
	if f.PerPage <= 0 {
		f.PerPage = DefaultPerPage
	}
	filtered := Apply(items, f)
	pageItems, pagination := shared.Paginate(filtered, f.Page, f.PerPage)
	return Page{Items: pageItems, Pagination: pagination, Categories: Categories(items), Filter: f}, nil
}

// Apply filters and sorts products by name.
func Apply(items []Product, f Filter) []Product {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Product, 0, len(items))
	for _, p := range items {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if f.StockOnly && !p.InStock() {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// Categories returns the distinct categories in display order.
func Categories(items []Product) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range items {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(p.Category)]; ok {
			continue
		}
		seen[strings.ToLower(p.Category)] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// Get fetches a single product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	if err := backend.Get(ctx, s.api, backend.PathID(basePath, id), nil, &p); err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, in Input) (Product, error) {
	if err := s.validate.Struct(in); err != nil {
		return Product{}, err
	}
	var p Product
	if err := backend.Send(ctx, s.api, http.MethodPost, basePath, in, &p); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update replaces product fields.
func (s *Service) Update(ctx context.Context, id string, in Input) (Product, error) {
	if err := s.validate.Struct(in); err != nil {
		return Product{}, err
	}
	var p Product
	if err := backend.Send(ctx, s.api, http.MethodPut, backend.PathID(basePath, id), in, &p); err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := backend.Send(ctx, s.api, http.MethodDelete, backend.PathID(basePath, id), nil, nil); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// AdjustStock applies a signed quantity change with a reason.
func (s *Service) AdjustStock(ctx context.Context, id string, adj StockAdjustment) (Product, error) {
	adj.Reason = strings.TrimSpace(adj.Reason)
	if adj.Delta == 0 || adj.Reason == "" {
		return Product{}, ErrInvalidAdjustment
	}
	var p Product
	if err := backend.Send(ctx, s.api, http.MethodPatch, backend.PathID(basePath, id, "stock"), adj, &p); err != nil {
		return Product{}, fmt.Errorf("adjust stock: %w", err)
	}
	return p, nil
}

// BulkUpload forwards a CSV file to the backend importer unparsed.
func (s *Service) BulkUpload(ctx context.Context, filename string, file io.Reader) (BulkResult, error) {
	var res BulkResult
	if err := backend.Upload(ctx, s.api, basePath+"/bulk", "file", filename, file, nil, &res); err != nil {
		return BulkResult{}, fmt.Errorf("bulk upload: %w", err)
	}
	return res, nil
}

// WriteCSV exports products in the bulk upload column layout.
func WriteCSV(w io.Writer, items []Product) error {
	records := make([][]string, 0, len(items))
	for _, p := range items {
		expiry := ""
		if p.ExpiryDate != nil {
			expiry = p.ExpiryDate.Format("2006-01-02")
		}
		records = append(records, []string{
			p.Name, p.SKU, p.Category, p.Price.StringFixed(2),
			strconv.FormatInt(p.Quantity, 10), p.Unit,
			strconv.FormatInt(p.Threshold, 10), expiry, p.Supplier.Label(),
		})
	}
	return export.WriteCSV(w, []string{"name", "sku", "category", "price", "quantity", "unit", "threshold", "expiryDate", "supplier"}, records)
}
