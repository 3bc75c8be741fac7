package repository

import "context"

// 在庫台帳。productsのstock列が唯一の正。
type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りるときだけ減算（足りなければ false）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル時に1回だけ）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 現在値取得
	GetStock(ctx context.Context, productID int64) (int64, error)
}
