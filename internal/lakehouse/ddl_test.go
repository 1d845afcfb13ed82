package lakehouse

import (
	"context"
	"testing"

	"github.com/rivermark/ironlake/internal/op"
)

func createTableEnvelope(tenant, table string, ifExists string) *op.Envelope {
	return &op.Envelope{
		RequestID: "r1",
		Operation: op.CreateTable,
		TenantID:  tenant,
		Namespace: "default",
		Table:     table,
		Payload: map[string]interface{}{
			"fields": []map[string]interface{}{
				{"name": "title", "type": "string", "required": true},
			},
			"if_exists": ifExists,
		},
	}
}

func TestHandleCreateTable_Fresh(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	resp, err := eng.Dispatch(context.Background(), createTableEnvelope("t1", "issues", ""))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != op.CodeNone {
		t.Fatalf("Code = %v, Error = %v", resp.Code, resp.Error)
	}
	if resp.Result["table_created"] != true {
		t.Errorf("table_created = %v, want true", resp.Result["table_created"])
	}
}

func TestHandleCreateTable_AlreadyExistsErrorsByDefault(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	ctx := context.Background()
	if _, err := eng.Dispatch(ctx, createTableEnvelope("t1", "issues", "")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	resp, err := eng.Dispatch(ctx, createTableEnvelope("t1", "issues", ""))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != op.CodeTableExists {
		t.Errorf("Code = %v, want TABLE_EXISTS", resp.Code)
	}
}

func TestHandleCreateTable_IfExistsIgnore(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	ctx := context.Background()
	if _, err := eng.Dispatch(ctx, createTableEnvelope("t1", "issues", "")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	resp, err := eng.Dispatch(ctx, createTableEnvelope("t1", "issues", "ignore"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != op.CodeNone {
		t.Fatalf("Code = %v, Error = %v", resp.Code, resp.Error)
	}
	if resp.Result["table_existed"] != true {
		t.Errorf("table_existed = %v, want true", resp.Result["table_existed"])
	}
}

func TestHandleListTables_EmptyNamespaceReturnsEmptyList(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	resp, err := eng.Dispatch(context.Background(), &op.Envelope{
		RequestID: "r1", Operation: op.ListTables, TenantID: "t1", Namespace: "default",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != op.CodeNone {
		t.Fatalf("Code = %v, Error = %v", resp.Code, resp.Error)
	}
	tables, _ := resp.Result["tables"].([]string)
	if len(tables) != 0 {
		t.Errorf("tables = %v, want empty", tables)
	}
}

func TestHandleListTables_AfterCreate(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	ctx := context.Background()
	if _, err := eng.Dispatch(ctx, createTableEnvelope("t1", "issues", "")); err != nil {
		t.Fatalf("create: %v", err)
	}
	resp, err := eng.Dispatch(ctx, &op.Envelope{
		RequestID: "r2", Operation: op.ListTables, TenantID: "t1", Namespace: "default",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	tables, _ := resp.Result["tables"].([]string)
	if len(tables) != 1 || tables[0] != "issues" {
		t.Errorf("tables = %v, want [issues]", tables)
	}
}

func TestHandleDescribeTable_NotFound(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	resp, err := eng.Dispatch(context.Background(), &op.Envelope{
		RequestID: "r1", Operation: op.DescribeTable, TenantID: "t1", Namespace: "default", Table: "missing",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != op.CodeTableNotFound {
		t.Errorf("Code = %v, want TABLE_NOT_FOUND", resp.Code)
	}
}

func TestHandleDescribeTable_ReturnsFieldsAndRowCount(t *testing.T) {
	eng, _, data, _ := newTestEngine()
	ctx := context.Background()
	if _, err := eng.Dispatch(ctx, createTableEnvelope("t1", "issues", "")); err != nil {
		t.Fatalf("create: %v", err)
	}
	data.rows["t1_default.issues"] = []map[string]interface{}{{"n": int64(3)}}

	resp, err := eng.Dispatch(ctx, &op.Envelope{
		RequestID: "r2", Operation: op.DescribeTable, TenantID: "t1", Namespace: "default", Table: "issues",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != op.CodeNone {
		t.Fatalf("Code = %v, Error = %v", resp.Code, resp.Error)
	}
	fields, _ := resp.Result["fields"].([]map[string]interface{})
	if len(fields) != 1 || fields[0]["name"] != "title" {
		t.Errorf("fields = %v, want [{name:title}]", fields)
	}
}

func TestHandleDropTable_NotExisting(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	resp, err := eng.Dispatch(context.Background(), &op.Envelope{
		RequestID: "r1", Operation: op.DropTable, TenantID: "t1", Namespace: "default", Table: "missing",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Result["table_existed"] != false {
		t.Errorf("table_existed = %v, want false", resp.Result["table_existed"])
	}
}

func TestHandleDropTable_Existing(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	ctx := context.Background()
	if _, err := eng.Dispatch(ctx, createTableEnvelope("t1", "issues", "")); err != nil {
		t.Fatalf("create: %v", err)
	}
	resp, err := eng.Dispatch(ctx, &op.Envelope{
		RequestID: "r2", Operation: op.DropTable, TenantID: "t1", Namespace: "default", Table: "issues",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Result["table_dropped"] != true {
		t.Errorf("table_dropped = %v, want true", resp.Result["table_dropped"])
	}
}

func TestHandleDropNamespace_NotFound(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	resp, err := eng.Dispatch(context.Background(), &op.Envelope{
		RequestID: "r1", Operation: op.DropNamespace, TenantID: "t1", Namespace: "ghost",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Result["namespace_existed"] != false {
		t.Errorf("namespace_existed = %v, want false", resp.Result["namespace_existed"])
	}
}

func TestHandleDropNamespace_Existing(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	ctx := context.Background()
	if _, err := eng.Dispatch(ctx, createTableEnvelope("t1", "issues", "")); err != nil {
		t.Fatalf("create: %v", err)
	}
	resp, err := eng.Dispatch(ctx, &op.Envelope{
		RequestID: "r2", Operation: op.DropNamespace, TenantID: "t1", Namespace: "default",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Result["namespace_dropped"] != true {
		t.Errorf("namespace_dropped = %v, want true", resp.Result["namespace_dropped"])
	}
}
