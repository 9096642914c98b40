package loader

// Tables in drop order; CASCADE takes care of dependents.
var tables = []string{
	"products_variants", "products", "stores", "users", "delivery_methods",
	"orders", "order_items", "shopping_lists", "shopping_list_items", "inventory",
}

var extensions = []string{"vector", "postgis"}

var createTables = []string{
	`CREATE TABLE products (
		product_id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		category VARCHAR(255),
		brand VARCHAR(255),
		image_url VARCHAR(512),
		popularity_score FLOAT DEFAULT 0.0
	)`,
	`CREATE TABLE products_variants (
		variant_id SERIAL PRIMARY KEY,
		product_id INTEGER REFERENCES products(product_id),
		size VARCHAR(255) NOT NULL,
		color VARCHAR(255) NOT NULL,
		price DECIMAL(10, 2) NOT NULL
	)`,
	`CREATE TABLE stores (
		store_id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		address VARCHAR(255),
		city VARCHAR(100),
		postal_code VARCHAR(20),
		country VARCHAR(50) DEFAULT 'Spain',
		popularity_score FLOAT DEFAULT 0.0
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id SERIAL PRIMARY KEY,
		first_name VARCHAR(100),
		last_name VARCHAR(100),
		address VARCHAR(255),
		city VARCHAR(100),
		postal_code VARCHAR(20)
	)`,
	`CREATE TABLE shopping_lists (
		list_id SERIAL PRIMARY KEY,
		user_id INT REFERENCES users(user_id) ON DELETE CASCADE
	)`,
	`CREATE TABLE shopping_list_items (
		item_id SERIAL PRIMARY KEY,
		list_id INT REFERENCES shopping_lists(list_id) ON DELETE CASCADE,
		product_id INT REFERENCES products(product_id) ON DELETE CASCADE,
		variant_id INT REFERENCES products_variants(variant_id) ON DELETE CASCADE,
		quantity INT NOT NULL
	)`,
	`CREATE TABLE inventory (
		inventory_id SERIAL PRIMARY KEY,
		variant_id INT NOT NULL REFERENCES products_variants(variant_id) ON DELETE CASCADE,
		store_id INT NOT NULL REFERENCES stores(store_id) ON DELETE CASCADE,
		quantity INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE delivery_methods (
		delivery_method_id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		description TEXT,
		base_cost NUMERIC(10, 2) NOT NULL DEFAULT 0.00,
		estimated_delivery_time VARCHAR(100),
		store_id INTEGER REFERENCES stores(store_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		store_id INTEGER REFERENCES stores(store_id),
		order_status VARCHAR(50) NOT NULL DEFAULT 'pending',
		shipping_address VARCHAR(255),
		delivery_method_id INT REFERENCES delivery_methods(delivery_method_id),
		shipping_cost NUMERIC(10, 2) DEFAULT 0.00,
		total_amount NUMERIC(12, 2) NOT NULL
	)`,
	`CREATE TABLE order_items (
		order_item_id SERIAL PRIMARY KEY,
		order_id INT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
		variant_id INT NOT NULL REFERENCES products_variants(variant_id),
		quantity INT NOT NULL CHECK (quantity > 0),
		price_at_purchase NUMERIC(10, 2) NOT NULL,
		product_name_at_purchase VARCHAR(255) NOT NULL,
		variant_details_at_purchase TEXT,
		subtotal_line_item NUMERIC(12, 2) GENERATED ALWAYS AS (quantity * price_at_purchase) STORED
	)`,
}

// csvTables is the COPY order; later tables reference earlier ones.
var csvTables = []string{
	"stores", "products", "products_variants", "users", "delivery_methods", "inventory",
}

var searchVector = []string{
	`ALTER TABLE products DROP COLUMN IF EXISTS search_vector`,
	`ALTER TABLE products ADD COLUMN search_vector TSVECTOR
	GENERATED ALWAYS AS (
		setweight(to_tsvector('english', COALESCE(name, '')), 'A') || ' ' ||
		setweight(to_tsvector('english', COALESCE(brand, '')), 'A') || ' ' ||
		setweight(to_tsvector('english', COALESCE(category, '')), 'B') || ' ' ||
		setweight(to_tsvector('english', COALESCE(description, '')), 'D')
	) STORED`,
	`CREATE INDEX IF NOT EXISTS idx_products_search_vector ON products USING GIN(search_vector)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,
	`CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand)`,
	`CREATE INDEX IF NOT EXISTS idx_products_embedding ON products USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_variants_product_id ON products_variants(product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_variant_id ON inventory(variant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_store_id ON inventory(store_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_store_id ON orders(store_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(order_status)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_variant_id ON order_items(variant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stores_location ON stores USING GIST(location)`,
	`CREATE INDEX IF NOT EXISTS idx_users_location ON users USING GIST(location)`,
}

// Point is a WGS84 coordinate.
type Point struct {
	Lon float64
	Lat float64
}

// Demo coordinates around Barcelona.
var (
	storeLocations = map[int64]Point{
		1: {Lon: 2.1284526, Lat: 41.3791088},
		2: {Lon: 2.1314569, Lat: 41.3847956},
		3: {Lon: 2.1519072, Lat: 41.3851542},
		4: {Lon: 2.1228843, Lat: 41.3827734},
		5: {Lon: 2.1991344, Lat: 41.4015078},
		6: {Lon: 2.1930161, Lat: 41.4248298},
	}
	userLocations = map[int64]Point{
		1: {Lon: 2.161236, Lat: 41.385273},
		2: {Lon: 2.136222, Lat: 41.381694},
		3: {Lon: 2.157001, Lat: 41.399485},
		4: {Lon: 2.175198, Lat: 41.405514},
		5: {Lon: 2.183633, Lat: 41.384529},
	}
)
