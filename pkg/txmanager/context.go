package txmanager

import "context"

type ctxKey struct{}

// withTx кладет открытую транзакцию в контекст
func withTx(ctx context.Context, tx DBExecutor) context.Context {
	return context.WithValue(ctx, ctxKey{}, tx)
}

// GetExecutor возвращает executor из контекста, если там есть активная
// транзакция, иначе переданный fallback. Репозитории всегда получают
// executor через эту функцию и сами транзакций не открывают.
func GetExecutor(ctx context.Context, fallback DBExecutor) DBExecutor {
	if tx, ok := ctx.Value(ctxKey{}).(DBExecutor); ok {
		return tx
	}
	return fallback
}

// IsInTransaction возвращает true, если в контексте есть активная транзакция
func IsInTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(ctxKey{}).(DBExecutor)
	return ok
}
