package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/peteski22/erpbridge/internal/commerce"
	"github.com/peteski22/erpbridge/internal/config"
	"github.com/peteski22/erpbridge/internal/storage"
	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

// Entity table suffixes.
const (
	tableAddresses  = "addresses"
	tableCategories = "categories"
	tableCustomers  = "customers"
	tableOrders     = "orders"
	tableProducts   = "products"
)

// DynamoDBStores opens one DynamoDB table per entity.
func DynamoDBStores(client storage.DynamoDBAPI, cfg config.DynamoDB) (erpsync.Stores, error) {
	var stores erpsync.Stores
	var err error

	if stores.Addresses, err = storage.NewEntityTable[commerce.Address](client, cfg.TableName(tableAddresses)); err != nil {
		return erpsync.Stores{}, fmt.Errorf("opening %s table: %w", tableAddresses, err)
	}
	if stores.Categories, err = storage.NewEntityTable[commerce.Category](client, cfg.TableName(tableCategories)); err != nil {
		return erpsync.Stores{}, fmt.Errorf("opening %s table: %w", tableCategories, err)
	}
	if stores.Customers, err = storage.NewEntityTable[commerce.Customer](client, cfg.TableName(tableCustomers)); err != nil {
		return erpsync.Stores{}, fmt.Errorf("opening %s table: %w", tableCustomers, err)
	}
	if stores.Orders, err = storage.NewEntityTable[commerce.Order](client, cfg.TableName(tableOrders)); err != nil {
		return erpsync.Stores{}, fmt.Errorf("opening %s table: %w", tableOrders, err)
	}
	if stores.Products, err = storage.NewEntityTable[commerce.Product](client, cfg.TableName(tableProducts)); err != nil {
		return erpsync.Stores{}, fmt.Errorf("opening %s table: %w", tableProducts, err)
	}

	return stores, nil
}

// fixtures is the layout of a local entities file.
type fixtures struct {
	Addresses  []commerce.Address  `json:"addresses"`
	Categories []commerce.Category `json:"categories"`
	Customers  []commerce.Customer `json:"customers"`
	Orders     []commerce.Order    `json:"orders"`
	Products   []commerce.Product  `json:"products"`
}

// LoadFixtures loads a JSON entities file into in-memory tables. Changes are not written back.
func LoadFixtures(path string) (erpsync.Stores, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return erpsync.Stores{}, fmt.Errorf("reading fixtures file: %w", err)
	}

	var f fixtures
	if err := json.Unmarshal(data, &f); err != nil {
		return erpsync.Stores{}, fmt.Errorf("parsing fixtures file: %w", err)
	}

	var stores erpsync.Stores
	if stores.Addresses, err = storage.NewMemoryTable(f.Addresses...); err != nil {
		return erpsync.Stores{}, fmt.Errorf("loading %s: %w", tableAddresses, err)
	}
	if stores.Categories, err = storage.NewMemoryTable(f.Categories...); err != nil {
		return erpsync.Stores{}, fmt.Errorf("loading %s: %w", tableCategories, err)
	}
	if stores.Customers, err = storage.NewMemoryTable(f.Customers...); err != nil {
		return erpsync.Stores{}, fmt.Errorf("loading %s: %w", tableCustomers, err)
	}
	if stores.Orders, err = storage.NewMemoryTable(f.Orders...); err != nil {
		return erpsync.Stores{}, fmt.Errorf("loading %s: %w", tableOrders, err)
	}
	if stores.Products, err = storage.NewMemoryTable(f.Products...); err != nil {
		return erpsync.Stores{}, fmt.Errorf("loading %s: %w", tableProducts, err)
	}

	return stores, nil
}
