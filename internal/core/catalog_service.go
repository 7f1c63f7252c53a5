package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService is the thin master-data layer: products, warehouses and suppliers.
type CatalogService interface {
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)

	CreateWarehouse(ctx context.Context, input WarehouseInput) (*Warehouse, error)
	GetWarehouse(ctx context.Context, id int) (*Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)

	CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

// NewCatalogService constructs a CatalogService backed by PostgreSQL.
func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

const productColumns = `id, sku, name, description, quantity, cost_price, selling_price,
	container_id, supplier_id, created_by, created_at, updated_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Quantity, &p.CostPrice, &p.SellingPrice,
		&p.ContainerID, &p.SupplierID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
}

// getProduct loads a product or returns a NotFoundError.
func getProduct(ctx context.Context, q pgxQuerier, id int) (*Product, error) {
	p := &Product{}
	err := scanProduct(q.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("product", id)
		}
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}
	return p, nil
}

// getWarehouse loads a warehouse or returns a NotFoundError.
func getWarehouse(ctx context.Context, q pgxQuerier, id int) (*Warehouse, error) {
	w := &Warehouse{}
	err := q.QueryRow(ctx, `
		SELECT id, name, location_address, contact_email, contact_phone, created_at
		FROM warehouses WHERE id = $1`, id,
	).Scan(&w.ID, &w.Name, &w.LocationAddress, &w.ContactEmail, &w.ContactPhone, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("warehouse", id)
		}
		return nil, fmt.Errorf("failed to load warehouse %d: %w", id, err)
	}
	return w, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	p := &Product{}
	err := scanProduct(s.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, quantity, cost_price, selling_price,
		                      container_id, supplier_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		strings.TrimSpace(input.SKU), strings.TrimSpace(input.Name), input.Description, input.Quantity,
		input.CostPrice, input.SellingPrice, input.ContainerID, input.SupplierID, input.CreatedBy,
	), p)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, invalid("sku", "product with SKU %q already exists", input.SKU)
		}
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, invalid("", "referenced container or supplier does not exist")
		}
		return nil, fmt.Errorf("create product %q: %w", input.SKU, err)
	}
	return p, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id int) (*Product, error) {
	return getProduct(ctx, s.pool, id)
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var where []string
	var args []any
	if filter.ContainerID > 0 {
		args = append(args, filter.ContainerID)
		where = append(where, fmt.Sprintf("container_id = $%d", len(args)))
	}
	if filter.SupplierID > 0 {
		args = append(args, filter.SupplierID)
		where = append(where, fmt.Sprintf("supplier_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(sku ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sku"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *catalogService) CreateWarehouse(ctx context.Context, input WarehouseInput) (*Warehouse, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, invalid("name", "is required")
	}

	w := &Warehouse{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO warehouses (name, location_address, contact_email, contact_phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, location_address, contact_email, contact_phone, created_at`,
		strings.TrimSpace(input.Name), input.LocationAddress, input.ContactEmail, input.ContactPhone,
	).Scan(&w.ID, &w.Name, &w.LocationAddress, &w.ContactEmail, &w.ContactPhone, &w.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, invalid("name", "warehouse %q already exists", input.Name)
		}
		return nil, fmt.Errorf("create warehouse %q: %w", input.Name, err)
	}
	return w, nil
}

func (s *catalogService) GetWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	return getWarehouse(ctx, s.pool, id)
}

func (s *catalogService) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, location_address, contact_email, contact_phone, created_at
		FROM warehouses
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.LocationAddress, &w.ContactEmail, &w.ContactPhone, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

func (s *catalogService) CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, invalid("name", "is required")
	}

	sp := &Supplier{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, contact_person, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, contact_person, email, phone, address, created_at`,
		strings.TrimSpace(input.Name), input.ContactPerson, input.Email, input.Phone, input.Address,
	).Scan(&sp.ID, &sp.Name, &sp.ContactPerson, &sp.Email, &sp.Phone, &sp.Address, &sp.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, invalid("name", "supplier %q already exists", input.Name)
		}
		return nil, fmt.Errorf("create supplier %q: %w", input.Name, err)
	}
	return sp, nil
}

func (s *catalogService) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, contact_person, email, phone, address, created_at
		FROM suppliers
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sp Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.ContactPerson, &sp.Email, &sp.Phone, &sp.Address, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, sp)
	}
	return suppliers, rows.Err()
}
