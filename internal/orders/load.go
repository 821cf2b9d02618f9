package orders

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// LoadIndex builds the order index from the static JSON datasets:
// orders.json (keyed by canonical order number, e.g. "#1117619") and
// email_index.json (email -> order numbers).
func LoadIndex(dataDir string) (*Index, error) {
	var rawOrders map[string]Record
	if err := readJSON(filepath.Join(dataDir, "orders.json"), &rawOrders); err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	var emails map[string][]string
	if err := readJSON(filepath.Join(dataDir, "email_index.json"), &emails); err != nil {
		return nil, fmt.Errorf("failed to load email index: %w", err)
	}
	ix := NewIndex(rawOrders, emails)
	o, e := ix.Size()
	log.Printf("[orders] loaded %d orders, %d emails", o, e)
	return ix, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
