package testutil

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
)

func TestStubDBFiltersByPredicate(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	for _, vendor := range []string{"v1", "v2"} {
		if _, err := conn.ExecContext(ctx, "INSERT INTO group_configurations (id, vendor_id) VALUES ($1,$2)", []driver.NamedValue{
			{Value: "cfg-" + vendor},
			{Value: vendor},
		}); err != nil {
			t.Fatalf("insert %s: %v", vendor, err)
		}
	}
	if _, err := conn.ExecContext(ctx, "INSERT INTO group_configurations (id, vendor_id) VALUES ($1,$2)", []driver.NamedValue{
		{Value: "cfg-v1"}, {Value: "v1"},
	}); err == nil {
		t.Fatalf("expected duplicate key error")
	}

	rows, err := conn.QueryContext(ctx, "SELECT id FROM group_configurations WHERE vendor_id = $1", []driver.NamedValue{{Value: "v2"}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	dest := make([]driver.Value, 1)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("next: %v", err)
	}
	if dest[0] != "cfg-v2" {
		t.Fatalf("unexpected row %v", dest)
	}
	if err := rows.Next(dest); err != io.EOF {
		t.Fatalf("expected single row, got %v", err)
	}
}
