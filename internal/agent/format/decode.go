package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoData is returned when a payload decodes to nothing worth showing.
var ErrNoData = errors.New("tool returned no data")

// text accepts JSON strings, numbers and booleans.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(s))
		return nil
	}
	*t = text(b)
	return nil
}

// money is a price that arrives either as a number or a decimal string.
type money struct {
	raw   string
	value float64
	ok    bool
}

func (m *money) UnmarshalJSON(b []byte) error {
	var t text
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	m.raw = strings.TrimSpace(string(t))
	m.value, m.ok = 0, false
	if m.raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimLeft(m.raw, "€$£ "), 64)
	if err == nil {
		m.value, m.ok = v, true
	}
	return nil
}

func (m money) format(currency string) string {
	if m.ok {
		return fmt.Sprintf("%s%.2f", currency, m.value)
	}
	return currency + strings.TrimLeft(m.raw, "€$£ ")
}

// list accepts a JSON array, a comma separated string or a Postgres array literal.
type list []string

func (l *list) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*l = nil
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		var items []text
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		for _, it := range items {
			if it != "" {
				*l = append(*l, string(it))
			}
		}
		return nil
	}
	var t text
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	s := strings.TrimSuffix(strings.TrimPrefix(string(t), "{"), "}")
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func (l list) join() string {
	return strings.Join(l, ", ")
}

// rows decodes a tool payload into a slice of T. An object payload is a single row.
func rows[T any](raw []byte) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoData
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		return rows[T]([]byte(inner))
	}
	if raw[0] == '{' {
		var one T
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		return []T{one}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

type Product struct {
	Name        text `json:"name"`
	Description text `json:"description"`
}

func DecodeProducts(raw []byte) ([]Product, error) {
	products, err := rows[Product](raw)
	if err != nil {
		return nil, err
	}
	out := products[:0]
	for _, p := range products {
		if p.Name != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

type ProductDetail struct {
	Name        text  `json:"name"`
	Price       money `json:"price"`
	Brand       text  `json:"brand"`
	Category    text  `json:"category"`
	Sizes       list  `json:"sizes"`
	Colors      list  `json:"colors"`
	Description text  `json:"description"`
}

// DecodeProductDetail returns the first product row.
func DecodeProductDetail(raw []byte) (*ProductDetail, error) {
	details, err := rows[ProductDetail](raw)
	if err != nil {
		return nil, err
	}
	if details[0].Name == "" {
		return nil, ErrNoData
	}
	return &details[0], nil
}

type ShoppingItem struct {
	UserName text  `json:"user_name,omitempty"`
	Product  text  `json:"product_name"`
	Alt      text  `json:"product"`
	Brand    text  `json:"brand"`
	Category text  `json:"category"`
	Size     text  `json:"size"`
	Color    text  `json:"color"`
	Price    money `json:"price"`
	Quantity text  `json:"quantity"`
}

func (i ShoppingItem) name() string {
	if i.Product != "" {
		return string(i.Product)
	}
	return string(i.Alt)
}

type ShoppingList struct {
	UserName string
	Items    []ShoppingItem
}

// DecodeShoppingList accepts {user_name, items} or flat item rows carrying user_name.
func DecodeShoppingList(raw []byte) (*ShoppingList, error) {
	var nested struct {
		UserName text           `json:"user_name"`
		Items    []ShoppingItem `json:"items"`
	}
	if isObjectWith(raw, "items") {
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, fmt.Errorf("decode shopping list: %w", err)
		}
		if len(nested.Items) == 0 {
			return nil, ErrNoData
		}
		return &ShoppingList{UserName: string(nested.UserName), Items: nested.Items}, nil
	}

	items, err := rows[ShoppingItem](raw)
	if err != nil {
		return nil, err
	}
	sl := &ShoppingList{}
	for _, it := range items {
		if sl.UserName == "" {
			sl.UserName = string(it.UserName)
		}
		if it.name() != "" {
			sl.Items = append(sl.Items, it)
		}
	}
	if len(sl.Items) == 0 {
		return nil, ErrNoData
	}
	return sl, nil
}

type OrderItem struct {
	Product  text  `json:"product_name"`
	Size     text  `json:"size"`
	Color    text  `json:"color"`
	Quantity text  `json:"quantity"`
	Price    money `json:"price"`
}

type Order struct {
	ID              text        `json:"order_id"`
	Store           text        `json:"store_name"`
	TotalAmount     money       `json:"total_amount"`
	ShippingAddress text        `json:"shipping_address"`
	DeliveryMethod  text        `json:"delivery_method"`
	Status          text        `json:"status"`
	Items           []OrderItem `json:"items"`
}

type Orders struct {
	UserName string
	Orders   []Order
}

// orderRow is one line of a joined orders x order_items result.
type orderRow struct {
	Order
	UserName text `json:"user_name"`
	OrderItem
}

// DecodeOrders accepts {user_name, orders} or flat joined rows grouped by order_id
// in first-seen order. Zero orders is a valid result.
func DecodeOrders(raw []byte) (*Orders, error) {
	if isObjectWith(raw, "orders") {
		var nested struct {
			UserName text    `json:"user_name"`
			Orders   []Order `json:"orders"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
		return &Orders{UserName: string(nested.UserName), Orders: nested.Orders}, nil
	}

	flat, err := rows[orderRow](raw)
	if errors.Is(err, ErrNoData) {
		return &Orders{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := &Orders{}
	index := map[text]int{}
	for _, r := range flat {
		if out.UserName == "" {
			out.UserName = string(r.UserName)
		}
		if r.Order.ID == "" {
			continue
		}
		i, seen := index[r.Order.ID]
		if !seen {
			o := r.Order
			o.Items = nil
			out.Orders = append(out.Orders, o)
			i = len(out.Orders) - 1
			index[r.Order.ID] = i
		}
		if len(r.Order.Items) > 0 {
			out.Orders[i].Items = append(out.Orders[i].Items, r.Order.Items...)
		} else if r.OrderItem.Product != "" {
			out.Orders[i].Items = append(out.Orders[i].Items, r.OrderItem)
		}
	}
	return out, nil
}

type DeliveryMethod struct {
	Name          text  `json:"name"`
	Description   text  `json:"description"`
	Cost          money `json:"cost"`
	EstimatedTime text  `json:"estimated_delivery_time"`
}

func DecodeDeliveryMethods(raw []byte) ([]DeliveryMethod, error) {
	methods, err := rows[DeliveryMethod](raw)
	if err != nil {
		return nil, err
	}
	out := methods[:0]
	for _, m := range methods {
		if m.Name != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

type Store struct {
	Name      text `json:"name"`
	Distance  text `json:"distance"`
	Longitude text `json:"longitude"`
	Latitude  text `json:"latitude"`
}

type StoreList struct {
	UserLongitude text
	UserLatitude  text
	Stores        []Store
}

type storeRow struct {
	Store
	UserLongitude text `json:"user_longitude"`
	UserLatitude  text `json:"user_latitude"`
}

// DecodeStores accepts {user_location:{longitude,latitude}, stores} or rows
// carrying user_longitude / user_latitude.
func DecodeStores(raw []byte) (*StoreList, error) {
	if isObjectWith(raw, "stores") {
		var nested struct {
			UserLocation struct {
				Longitude text `json:"longitude"`
				Latitude  text `json:"latitude"`
			} `json:"user_location"`
			Stores []Store `json:"stores"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, fmt.Errorf("decode stores: %w", err)
		}
		sl := &StoreList{
			UserLongitude: nested.UserLocation.Longitude,
			UserLatitude:  nested.UserLocation.Latitude,
			Stores:        nested.Stores,
		}
		return checkStores(sl)
	}

	flat, err := rows[storeRow](raw)
	if err != nil {
		return nil, err
	}
	sl := &StoreList{}
	for _, r := range flat {
		if sl.UserLongitude == "" {
			sl.UserLongitude, sl.UserLatitude = r.UserLongitude, r.UserLatitude
		}
		if r.Name != "" {
			sl.Stores = append(sl.Stores, r.Store)
		}
	}
	return checkStores(sl)
}

func checkStores(sl *StoreList) (*StoreList, error) {
	if len(sl.Stores) == 0 {
		return nil, ErrNoData
	}
	if sl.UserLongitude == "" || sl.UserLatitude == "" {
		return nil, errors.New("stores payload has no user location")
	}
	return sl, nil
}

func isObjectWith(raw []byte, key string) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	_, ok := probe[key]
	return ok
}
