package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsert_ColumnOrderMatchesArgOrder(t *testing.T) {
	stmt, args := Insert("orders", []Column{
		{Name: "order_id", Value: uint64(1)},
		{Name: "symbol", Value: "BTC-USD"},
	})
	assert.Equal(t, "INSERT INTO orders (order_id, symbol) VALUES (?, ?)", stmt)
	assert.Equal(t, []any{uint64(1), "BTC-USD"}, args)
}

func TestUpdate_PrimaryKeyArgIsLast(t *testing.T) {
	stmt, args := Update("orders", "order_id", uint64(7), []Column{
		{Name: "status", Value: "filled"},
	})
	assert.Equal(t, "UPDATE orders SET status = ? WHERE order_id = ?", stmt)
	assert.Equal(t, []any{"filled", uint64(7)}, args)
}

func TestDelete_BindsOnlyThePrimaryKey(t *testing.T) {
	stmt, args := Delete("orders", "order_id", uint64(3))
	assert.Equal(t, "DELETE FROM orders WHERE order_id = ?", stmt)
	assert.Equal(t, []any{uint64(3)}, args)
}

func TestInsert_IsDeterministicAcrossCalls(t *testing.T) {
	cols := []Column{{Name: "a", Value: 1}, {Name: "b", Value: 2}}
	stmt1, args1 := Insert("t", cols)
	stmt2, args2 := Insert("t", cols)
	assert.Equal(t, stmt1, stmt2)
	assert.Equal(t, args1, args2)
}
