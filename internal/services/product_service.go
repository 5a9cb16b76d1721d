package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"pear/internal/models"
	"pear/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Catalog sort orders.
const (
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
)

// ProductFilter narrows and orders a catalog listing. Price sorts use the
// price that applies under Mode.
type ProductFilter struct {
	Sort        string
	InStockOnly bool
	Mode        models.OrderMode
}

// ProductInput is the data an admin supplies for a new product.
type ProductInput struct {
	Name           string          `json:"name" validate:"required,max=255"`
	ImageURL       string          `json:"image_url" validate:"omitempty,url"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	Stock          int             `json:"stock" validate:"gte=0"`
}

// ProductService handles business logic for the catalog.
type ProductService struct {
	repo         repositories.ProductRepository
	descriptions DescriptionGenerator
	validate     *validator.Validate
}

// NewProductService creates a new ProductService. A nil descriptions
// generator uses FallbackDescription.
func NewProductService(repo repositories.ProductRepository, descriptions DescriptionGenerator) *ProductService {
	if descriptions == nil {
		descriptions = NewTextDescriptionGenerator(nil)
	}
	return &ProductService{
		repo:         repo,
		descriptions: descriptions,
		validate:     validator.New(),
	}
}

// ListProducts returns the catalog filtered and sorted by filter.
func (s *ProductService) ListProducts(filter ProductFilter) ([]models.Product, error) {
	mode := filter.Mode
	if mode == "" {
		mode = models.OrderModeRetail
	}
	if !mode.Valid() {
		return nil, invalid("mode", ErrInvalidMode)
	}

	var less func(a, b models.Product) bool
	switch filter.Sort {
	case "", SortNameAsc:
		less = func(a, b models.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortNameDesc:
		less = func(a, b models.Product) bool { return strings.ToLower(a.Name) > strings.ToLower(b.Name) }
	case SortPriceAsc:
		less = func(a, b models.Product) bool { return UnitPrice(a, mode).LessThan(UnitPrice(b, mode)) }
	case SortPriceDesc:
		less = func(a, b models.Product) bool { return UnitPrice(a, mode).GreaterThan(UnitPrice(b, mode)) }
	default:
		return nil, invalid("sort", fmt.Errorf("unknown sort order %q", filter.Sort))
	}

	products, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	result := make([]models.Product, 0, len(products))
	for _, p := range products {
		if filter.InStockOnly && p.Stock <= 0 {
			continue
		}
		result = append(result, p)
	}
	sort.SliceStable(result, func(i, j int) bool { return less(result[i], result[j]) })
	return result, nil
}

// GetProduct retrieves a product by its ID.
func (s *ProductService) GetProduct(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct validates input, writes a description and stores the product.
func (s *ProductService) CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return nil, invalid("product", fmt.Errorf("%w: %v", ErrInvalidProduct, err))
	}
	if !input.RetailPrice.IsPositive() {
		return nil, invalid("retail_price", fmt.Errorf("%w: retail price must be positive", ErrInvalidProduct))
	}
	if input.WholesalePrice.IsNegative() {
		return nil, invalid("wholesale_price", fmt.Errorf("%w: wholesale price must not be negative", ErrInvalidProduct))
	}

	product := &models.Product{
		Name:           input.Name,
		ImageURL:       input.ImageURL,
		RetailPrice:    input.RetailPrice,
		WholesalePrice: input.WholesalePrice,
		Stock:          input.Stock,
		Description:    s.descriptions.Describe(ctx, input.Name),
	}
	if err := s.repo.Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateStock sets the stock count of a product.
func (s *ProductService) UpdateStock(id string, stock int) (*models.Product, error) {
	if stock < 0 {
		return nil, invalid("stock", ErrInvalidStock)
	}
	return s.repo.UpdateStock(id, stock)
}

// DefaultCatalog is the catalog stored on first start.
func DefaultCatalog() []models.Product {
	phone := func(name, image string, retail, wholesale int64, stock int, description string) models.Product {
		return models.Product{
			Name:           name,
			ImageURL:       image,
			RetailPrice:    decimal.NewFromInt(retail),
			WholesalePrice: decimal.NewFromInt(wholesale),
			Stock:          stock,
			Description:    description,
		}
	}
	return []models.Product{
		phone("Quantum X1", "https://placehold.co/600x400/0f172a/ffffff?text=Quantum+X1", 999, 750, 150,
			"The future of mobile technology, with a stunning edge-to-edge display and an AI-powered camera system."),
		phone("Nebula Pro", "https://placehold.co/600x400/1e293b/ffffff?text=Nebula+Pro", 1199, 900, 80,
			"Professional grade performance with a pro-motion display and a privacy-focused architecture."),
		phone("Stellar Lite", "https://placehold.co/600x400/334155/ffffff?text=Stellar+Lite", 499, 380, 250,
			"All the essential features in a sleek, lightweight design, offering great value and a long-lasting battery."),
		phone("Galaxy Fold Z5", "https://placehold.co/600x400/475569/ffffff?text=Galaxy+Fold", 1799, 1500, 50,
			"Unfold a new world of possibilities with a tablet-sized screen that fits in your pocket."),
		phone("Pixel 8 Pro", "https://placehold.co/600x400/64748b/ffffff?text=Pixel+8+Pro", 1099, 850, 120,
			"Pure, helpful experience with the best camera and AI features, straight from the source."),
		phone("Nova Spark", "https://placehold.co/600x400/94a3b8/ffffff?text=Nova+Spark", 349, 250, 300,
			"Bright, fun and affordable. The perfect entry into the smartphone world."),
	}
}

// SeedCatalog stores DefaultCatalog when the catalog is empty. It returns
// the number of products created.
func (s *ProductService) SeedCatalog() (int, error) {
	existing, err := s.repo.GetAll()
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, p := range DefaultCatalog() {
		product := p
		if err := s.repo.Create(&product); err != nil {
			return created, fmt.Errorf("failed to seed product %s: %w", product.Name, err)
		}
		log.Printf("Seeded product: %s (ID: %s)", product.Name, product.ID)
		created++
	}
	return created, nil
}
