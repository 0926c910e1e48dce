package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	categories := seedCategories(db)
	products := seedProducts(db, categories)
	seedBundles(db, categories, products)
	seedDiscountRules(db, categories, products)
	seedPromos(db, categories)

	log.Println("Seeding completed successfully!")
}

func seedCategories(db *sql.DB) map[string]string {
	fmt.Println("Seeding Categories...")
	rows := []struct {
		Name string
		Slug string
	}{
		{"Pakaian Pria", "pakaian-pria"},
		{"Pakaian Wanita", "pakaian-wanita"},
		{"Sepatu", "sepatu"},
		{"Aksesoris", "aksesoris"},
		{"Elektronik", "elektronik"},
	}

	ids := make(map[string]string, len(rows))
	for _, c := range rows {
		var id string
		err := db.QueryRow(`
			INSERT INTO categories (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, c.Name, c.Slug).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed category %s: %v", c.Slug, err)
		}
		ids[c.Slug] = id
	}
	return ids
}

func seedProducts(db *sql.DB, categories map[string]string) map[string]string {
	fmt.Println("Seeding Products...")
	rows := []struct {
		Title    string
		Slug     string
		Category string
		Price    int64
	}{
		{"Kemeja Flanel Kotak", "kemeja-flanel-kotak", "pakaian-pria", 189000},
		{"Kaos Polos Hitam", "kaos-polos-hitam", "pakaian-pria", 75000},
		{"Celana Chino Slim", "celana-chino-slim", "pakaian-pria", 225000},
		{"Dress Floral Midi", "dress-floral-midi", "pakaian-wanita", 265000},
		{"Blouse Satin Putih", "blouse-satin-putih", "pakaian-wanita", 159000},
		{"Sneakers Kanvas Putih", "sneakers-kanvas-putih", "sepatu", 349000},
		{"Sandal Kulit Coklat", "sandal-kulit-coklat", "sepatu", 189000},
		{"Topi Baseball Navy", "topi-baseball-navy", "aksesoris", 59000},
		{"Tas Selempang Kanvas", "tas-selempang-kanvas", "aksesoris", 129000},
		{"Earphone Bluetooth", "earphone-bluetooth", "elektronik", 299000},
		{"Powerbank 10000mAh", "powerbank-10000mah", "elektronik", 215000},
	}

	ids := make(map[string]string, len(rows))
	for _, p := range rows {
		catID, ok := categories[p.Category]
		if !ok {
			log.Fatalf("Unknown category %s for product %s", p.Category, p.Slug)
		}
		var id string
		err := db.QueryRow(`
			INSERT INTO products (title, slug, category_id, base_price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, base_price = EXCLUDED.base_price
			RETURNING id`, p.Title, p.Slug, catID, p.Price).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Slug, err)
		}
		ids[p.Slug] = id
	}
	return ids
}

type bundlePayload struct {
	Price int64               `json:"price"`
	Items []bundleItemPayload `json:"items"`
}

type bundleItemPayload struct {
	ProductID string `json:"productId"`
	Slot      string `json:"slot"`
}

func seedBundles(db *sql.DB, categories, products map[string]string) {
	fmt.Println("Seeding Bundles...")
	bundles := []struct {
		Title    string
		Slug     string
		Category string
		Price    int64
		Items    []bundleItemPayload
	}{
		{
			Title:    "Paket Kasual Pria",
			Slug:     "paket-kasual-pria",
			Category: "pakaian-pria",
			Price:    259000,
			Items: []bundleItemPayload{
				{ProductID: products["kaos-polos-hitam"], Slot: "atasan"},
				{ProductID: products["celana-chino-slim"], Slot: "bawahan"},
			},
		},
		{
			Title:    "Paket Traveling",
			Slug:     "paket-traveling",
			Category: "aksesoris",
			Price:    159000,
			Items: []bundleItemPayload{
				{ProductID: products["topi-baseball-navy"], Slot: "topi"},
				{ProductID: products["tas-selempang-kanvas"], Slot: "tas"},
			},
		},
	}

	for _, b := range bundles {
		raw, err := json.Marshal(bundlePayload{Price: b.Price, Items: b.Items})
		if err != nil {
			log.Fatalf("Failed to encode bundle %s: %v", b.Slug, err)
		}
		_, err = db.Exec(`
			INSERT INTO products (title, slug, category_id, base_price, bundle)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, bundle = EXCLUDED.bundle`,
			b.Title, b.Slug, categories[b.Category], b.Price, raw)
		if err != nil {
			log.Fatalf("Failed to seed bundle %s: %v", b.Slug, err)
		}
	}
}

func seedDiscountRules(db *sql.DB, categories, products map[string]string) {
	fmt.Println("Seeding Discount Rules...")
	var existing int
	if err := db.QueryRow(`SELECT COUNT(*) FROM discount_rules`).Scan(&existing); err != nil {
		log.Fatalf("Failed to count discount rules: %v", err)
	}
	if existing > 0 {
		fmt.Println("Discount rules already present, skipping")
		return
	}
	rules := []struct {
		Scope    string
		TargetID string
		Kind     string
		Value    int64
	}{
		{"category", categories["sepatu"], "percentage", 15},
		{"product", products["dress-floral-midi"], "fixed", 40000},
	}

	for _, r := range rules {
		_, err := db.Exec(`
			INSERT INTO discount_rules (scope, target_id, kind, value, starts_at, ends_at)
			VALUES ($1, $2, $3, $4, now() - interval '1 day', now() + interval '30 days')`,
			r.Scope, r.TargetID, r.Kind, r.Value)
		if err != nil {
			log.Fatalf("Failed to seed discount rule: %v", err)
		}
	}
}

func seedPromos(db *sql.DB, categories map[string]string) {
	fmt.Println("Seeding Promos...")
	zeroUUID := "00000000-0000-0000-0000-000000000000"
	promos := []struct {
		Code     string
		Scope    string
		TargetID string
		Kind     string
		Value    int64
	}{
		{"HEMAT10", "all", zeroUUID, "percentage", 10},
		{"SEPATU50K", "category", categories["sepatu"], "fixed", 50000},
	}

	for _, p := range promos {
		_, err := db.Exec(`
			INSERT INTO promos (code, scope, target_id, kind, value, expires_at)
			VALUES ($1, $2, $3, $4, $5, now() + interval '60 days')
			ON CONFLICT (upper(code)) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
			p.Code, p.Scope, p.TargetID, p.Kind, p.Value)
		if err != nil {
			log.Fatalf("Failed to seed promo %s: %v", p.Code, err)
		}
	}
}
