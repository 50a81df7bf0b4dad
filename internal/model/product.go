package model

// Product is one entry of the catalog grid.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    float64
	Stock    int
}

// DefaultProducts is the hardcoded catalog shown next to the metrics.
var DefaultProducts = []Product{
	{ID: "p-001", Name: "Router WiFi 6", Category: "Redes", Price: 129.90, Stock: 42},
	{ID: "p-002", Name: "Switch 24 puertos", Category: "Redes", Price: 349.00, Stock: 8},
	{ID: "p-003", Name: "Cámara IP 4K", Category: "Seguridad", Price: 89.50, Stock: 17},
	{ID: "p-004", Name: "NAS 4 bahías", Category: "Almacenamiento", Price: 499.99, Stock: 5},
	{ID: "p-005", Name: "SSD NVMe 1TB", Category: "Almacenamiento", Price: 74.00, Stock: 63},
	{ID: "p-006", Name: "UPS 1500VA", Category: "Energía", Price: 219.00, Stock: 0},
}
