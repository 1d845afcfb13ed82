package lakehouse

import (
	"context"
	"testing"

	"github.com/rivermark/ironlake/internal/op"
)

func TestHandleHardDelete_RequiresConfirm(t *testing.T) {
	eng, _, data, _ := newTestEngine()
	seedTable(t, eng, data, "t1", "issues", []map[string]interface{}{{"_record_id": "a"}})

	resp, err := eng.Dispatch(context.Background(), &op.Envelope{
		RequestID: "r2", Operation: op.HardDelete, TenantID: "t1", Namespace: "default", Table: "issues",
		Payload: map[string]interface{}{
			"filters": []map[string]interface{}{{"field": "_record_id", "operator": "eq", "value": "a"}},
		},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != op.CodeConfirmationRequired {
		t.Errorf("Code = %v, want CONFIRMATION_REQUIRED", resp.Code)
	}
}

func TestHandleHardDelete_NoMatchesIsANoop(t *testing.T) {
	eng, _, data, _ := newTestEngine()
	seedTable(t, eng, data, "t1", "issues", nil)

	resp, err := eng.Dispatch(context.Background(), &op.Envelope{
		RequestID: "r2", Operation: op.HardDelete, TenantID: "t1", Namespace: "default", Table: "issues",
		Payload: map[string]interface{}{
			"filters": []map[string]interface{}{{"field": "_record_id", "operator": "eq", "value": "a"}},
			"confirm": true,
		},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Result["records_deleted"] != 0 {
		t.Errorf("records_deleted = %v, want 0", resp.Result["records_deleted"])
	}
}

func TestHandleHardDelete_RemovesMatches(t *testing.T) {
	eng, _, data, _ := newTestEngine()
	seedTable(t, eng, data, "t1", "issues", []map[string]interface{}{
		{"n": int64(1)},
	})

	resp, err := eng.Dispatch(context.Background(), &op.Envelope{
		RequestID: "r2", Operation: op.HardDelete, TenantID: "t1", Namespace: "default", Table: "issues",
		Payload: map[string]interface{}{
			"filters": []map[string]interface{}{{"field": "_record_id", "operator": "eq", "value": "a"}},
			"confirm": true,
		},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Code != op.CodeNone {
		t.Fatalf("Code = %v, Error = %v", resp.Code, resp.Error)
	}
	if resp.Result["records_deleted"] != int64(1) {
		t.Errorf("records_deleted = %v, want 1", resp.Result["records_deleted"])
	}
}
